package domain

import (
	"fmt"
	"strings"
)

// Status is the delivery lifecycle stage of a message.
// Values are ordered: a message only ever moves to a greater Status.
type Status int

const (
	StatusSent Status = iota + 1
	StatusDelivered
	StatusRead
)

func (s Status) String() string {
	switch s {
	case StatusSent:
		return "sent"
	case StatusDelivered:
		return "delivered"
	case StatusRead:
		return "read"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

func (s Status) Valid() bool {
	return s >= StatusSent && s <= StatusRead
}

// CanAdvanceTo reports whether moving from s to next is a forward move.
// Equal or backward moves are never allowed.
func (s Status) CanAdvanceTo(next Status) bool {
	return next.Valid() && next > s
}

// Max returns the furthest of two statuses.
func (s Status) Max(other Status) Status {
	if other > s {
		return other
	}
	return s
}

func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sent":
		return StatusSent, nil
	case "delivered":
		return StatusDelivered, nil
	case "read":
		return StatusRead, nil
	default:
		return 0, fmt.Errorf("unknown status %q", raw)
	}
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot marshal %s", s)
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
