package e2e

import (
	"bytes"
	"chat-relay/infrastructure/ws"
	"chat-relay/services"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

const password = "E2e-Passw0rd!"

// The relay registers a connection right after the handshake, not before it.
const settle = 200 * time.Millisecond

type BaseHttpSuite struct {
	suite.Suite
	Config Config
	client *http.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseHttpSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.RelayAddr == "" {
		s.T().Skip("RELAY_ADDR is not set")
	}
	s.client = &http.Client{Timeout: 10 * time.Second}
}

// Step prints a colorized header for a scenario step in logs
func (s *BaseHttpSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Call sends a JSON request and decodes the JSON answer into out when it is not nil.
// It returns the status code.
func (s *BaseHttpSuite) Call(method, path, token string, body, out any) int {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		s.Require().NoError(err)
	}
	request, err := http.NewRequest(method, s.Config.RelayAddr+path, bytes.NewReader(payload))
	s.Require().NoError(err)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	response, err := s.client.Do(request)
	s.Require().NoError(err, "Failed to reach relay at "+s.Config.RelayAddr)
	defer response.Body.Close()
	answer, err := io.ReadAll(response.Body)
	s.Require().NoError(err)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", method, path, response.StatusCode, time.Since(start))
	// Log full JSON request/response bodies if E2E_DEBUG_JSON is enabled
	if s.Config.DebugJSON {
		fmt.Fprintf(&logBuilder, "\nREQUEST:\n%s\nRESPONSE:\n%s", payload, answer)
	}
	s.T().Log(logBuilder.String())

	if out != nil && response.StatusCode < http.StatusBadRequest {
		s.Require().NoError(json.Unmarshal(answer, out))
	}
	return response.StatusCode
}

// Register creates a throwaway account, emails and usernames are unique per run.
func (s *BaseHttpSuite) Register(name string) services.Session {
	var session services.Session
	suffix := uuid.NewString()[:8]
	status := s.Call(http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":    fmt.Sprintf("%s-%s@e2e.test", name, suffix),
		"password": password,
		"username": name + suffix,
	}, &session)
	s.Require().Equal(http.StatusCreated, status)
	return session
}

// Dial opens the websocket of the token's owner.
func (s *BaseHttpSuite) Dial(token string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.Config.RelayAddr, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	time.Sleep(settle)
	return conn
}

// Expect reads frames until one carries the named event.
func (s *BaseHttpSuite) Expect(conn *websocket.Conn, name string, out any) {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	for {
		var envelope ws.Envelope
		s.Require().NoError(conn.ReadJSON(&envelope))
		if envelope.Event != name {
			continue
		}
		if out != nil {
			s.Require().NoError(json.Unmarshal(envelope.Data, out))
		}
		return
	}
}
