package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host                 string        `env:"HOST,default=0.0.0.0"`
	Port                 int           `env:"PORT,default=8080"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath        string        `env:"BLUGE_FILEPATH"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	BufferSize           int           `env:"BUFFER_SIZE,default=1024"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	StoreRetries         int           `env:"STORE_RETRIES,default=1"`
	AuthSecret           string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	UploadDir            string        `env:"UPLOAD_DIR,default=./uploads"`
	MaxUploadSize        int64         `env:"MAX_UPLOAD_SIZE,default=52428800"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=4096"`
	DefaultPageSize      int           `env:"DEFAULT_PAGE_SIZE,default=30"`
	MaxPageSize          int           `env:"MAX_PAGE_SIZE,default=100"`
	SearchLimit          int           `env:"SEARCH_LIMIT,default=20"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS,default=*"`
	EnableModeration     bool          `env:"ENABLE_MODERATION,default=true"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL,default=1m"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=1s"`
	DebugPort            int           `env:"DEBUG_PORT,default=8081"`
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
