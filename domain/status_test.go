package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatus_Only_Advances_Forward(t *testing.T) {
	req := require.New(t)

	req.True(StatusSent.CanAdvanceTo(StatusDelivered))
	req.True(StatusSent.CanAdvanceTo(StatusRead))
	req.True(StatusDelivered.CanAdvanceTo(StatusRead))

	req.False(StatusSent.CanAdvanceTo(StatusSent))
	req.False(StatusDelivered.CanAdvanceTo(StatusSent))
	req.False(StatusRead.CanAdvanceTo(StatusDelivered))
	req.False(StatusRead.CanAdvanceTo(Status(42)))
}

func TestStatus_Any_Order_Of_Transitions_Reaches_Maximum(t *testing.T) {
	req := require.New(t)
	orders := [][]Status{
		{StatusDelivered, StatusRead},
		{StatusRead, StatusDelivered},
		{StatusRead, StatusRead, StatusDelivered, StatusSent},
		{StatusDelivered, StatusDelivered},
	}
	for _, order := range orders {
		current := StatusSent
		reached := StatusSent
		for _, next := range order {
			if current.CanAdvanceTo(next) {
				current = next
			}
			reached = reached.Max(next)
		}
		req.Equal(reached, current)
	}
}

func TestStatus_Json_Uses_Names(t *testing.T) {
	req := require.New(t)
	data, err := json.Marshal(struct {
		Status Status `json:"status"`
	}{StatusDelivered})
	req.NoError(err)
	req.JSONEq(`{"status":"delivered"}`, string(data))

	var decoded struct {
		Status Status `json:"status"`
	}
	req.NoError(json.Unmarshal([]byte(`{"status":"read"}`), &decoded))
	req.Equal(StatusRead, decoded.Status)

	_, err = ParseStatus("archived")
	req.Error(err)
}
