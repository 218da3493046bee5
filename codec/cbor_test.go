package codec

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID     uuid.UUID `cbor:"id"`
	Sender string    `cbor:"sender"`
	At     int64     `cbor:"at"`
}

func TestMarshal_Is_Deterministic(t *testing.T) {
	req := require.New(t)
	r := record{ID: uuid.New(), Sender: "alice", At: 42}

	first, err := Marshal(r)
	req.NoError(err)
	second, err := Marshal(r)
	req.NoError(err)
	req.Equal(first, second)
}

func TestUnmarshal_Keeps_UUID_Identity(t *testing.T) {
	req := require.New(t)
	r := record{ID: uuid.New(), Sender: "bob", At: 7}

	data, err := Marshal(r)
	req.NoError(err)

	var decoded record
	req.NoError(Unmarshal(data, &decoded))
	req.Equal(r, decoded)
}

func TestUnmarshal_Ignores_Unknown_Fields(t *testing.T) {
	req := require.New(t)
	data, err := Marshal(map[string]any{"sender": "clara", "unknown": true})
	req.NoError(err)

	var decoded record
	req.NoError(Unmarshal(data, &decoded))
	req.Equal("clara", decoded.Sender)
}
