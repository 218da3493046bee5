package runtime

import (
	"chat-relay/domain"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_Online_While_Any_Handle_Remains(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// Given alice opened three connections
	for i := 0; i < 3; i++ {
		registry.Connect("alice", domain.Handle(fmt.Sprintf("h%d", i)))
	}
	req.True(registry.IsOnline("alice"))
	req.Len(registry.HandlesFor("alice"), 3)

	// When two of them close
	for i := 0; i < 2; i++ {
		_, wentOffline := registry.Disconnect(domain.Handle(fmt.Sprintf("h%d", i)))
		req.False(wentOffline)
	}

	// Then alice is still online through the last one
	req.True(registry.IsOnline("alice"))
	req.Equal([]domain.Handle{"h2"}, registry.HandlesFor("alice"))

	// And closing it takes her offline
	userID, wentOffline := registry.Disconnect("h2")
	req.Equal("alice", userID)
	req.True(wentOffline)
	req.False(registry.IsOnline("alice"))
	req.Empty(registry.HandlesFor("alice"))
	req.Zero(registry.OnlineCount())
}

func TestRegistry_Connect_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Connect("alice", "h1")
	registry.Connect("alice", "h1")
	req.Len(registry.HandlesFor("alice"), 1)

	_, wentOffline := registry.Disconnect("h1")
	req.True(wentOffline)
}

func TestRegistry_Disconnect_Unknown_Handle(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	userID, wentOffline := registry.Disconnect("ghost")
	req.Empty(userID)
	req.False(wentOffline)
}

func TestRegistry_Handle_Moves_To_New_Owner(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Connect("alice", "h1")
	registry.Connect("bob", "h1")

	req.False(registry.IsOnline("alice"))
	req.Equal([]domain.Handle{"h1"}, registry.HandlesFor("bob"))
}

func TestRegistry_HandlesFor_Returns_A_Copy(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Connect("alice", "h1")

	handles := registry.HandlesFor("alice")
	handles[0] = "tampered"

	req.Equal([]domain.Handle{"h1"}, registry.HandlesFor("alice"))
}

func TestRegistry_Concurrent_Lifecycles(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	users := 50
	handlesPerUser := 20

	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		for h := 0; h < handlesPerUser; h++ {
			wg.Add(1)
			go func(u, h int) {
				defer wg.Done()
				userID := fmt.Sprintf("user-%d", u)
				handle := domain.Handle(fmt.Sprintf("%s-h%d", userID, h))
				registry.Connect(userID, handle)
				_ = registry.IsOnline(userID)
				// Every handle but the last of each user closes again
				if h < handlesPerUser-1 {
					registry.Disconnect(handle)
				}
			}(u, h)
		}
	}
	wg.Wait()

	req.Equal(users, registry.OnlineCount())
	for u := 0; u < users; u++ {
		req.Len(registry.HandlesFor(fmt.Sprintf("user-%d", u)), 1)
	}
}
