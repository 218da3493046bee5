package e2e

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type testDeliverySuite struct {
	BaseHttpSuite
}

func TestDeliverySuite(t *testing.T) {
	suite.Run(t, &testDeliverySuite{})
}

func (s *testDeliverySuite) TestOfflineThenOnlineDelivery() {
	alice := s.Register("alice")
	bob := s.Register("bob")
	var pending domain.Message

	aliceConn := s.Dial(alice.Token)
	defer aliceConn.Close()

	s.Run("Step 1: Message to an offline user stays sent", func() {
		s.Step("Alice writes while Bob is away")
		status := s.Call(http.MethodPost, "/api/messages", alice.Token, map[string]any{
			"recipient": bob.Profile.ID,
			"content":   "see you tomorrow",
		}, &pending)
		s.Require().Equal(http.StatusCreated, status)
		s.Require().Equal(domain.StatusSent, pending.Status)
	})

	s.Run("Step 2: Connecting delivers what was pending", func() {
		s.Step("Bob connects")
		bobConn := s.Dial(bob.Token)
		defer bobConn.Close()

		var changed event.StatusChanged
		s.Expect(aliceConn, event.NameMessageStatus, &changed)
		s.Require().Equal(pending.ID, changed.MessageID)
		s.Require().Equal(domain.StatusDelivered, changed.Status)
	})

	s.Run("Step 3: Read receipts reach the sender", func() {
		s.Step("Bob reads the conversation")
		var page domain.Page
		status := s.Call(http.MethodGet, fmt.Sprintf("/api/messages/%s", alice.Profile.ID), bob.Token, nil, &page)
		s.Require().Equal(http.StatusOK, status)
		s.Require().Equal(1, page.TotalCount)

		status = s.Call(http.MethodPost, "/api/messages/read", bob.Token, map[string]any{
			"messageIds": []uuid.UUID{pending.ID},
		}, nil)
		s.Require().Equal(http.StatusOK, status)

		var changed event.StatusChanged
		s.Expect(aliceConn, event.NameMessageStatus, &changed)
		s.Require().Equal(domain.StatusRead, changed.Status)
	})
}
