package runtime

import (
	"chat-relay/domain"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const registryShards = 64

type Set map[domain.Handle]struct{}

type userShard struct {
	mu       sync.RWMutex
	sessions map[string]Set // map user -> live handles
}

type handleShard struct {
	mu     sync.Mutex
	owners map[domain.Handle]string // map handle -> user
}

// Registry is the presence registry: which users hold at least one live connection.
// Users and handles are spread over independently locked shards, so connection
// lifecycles of unrelated users rarely contend.
// Lock order is always handle shard, then user shard.
type Registry struct {
	users   [registryShards]userShard
	handles [registryShards]handleShard
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.users {
		r.users[i].sessions = make(map[string]Set)
		r.handles[i].owners = make(map[domain.Handle]string)
	}
	return r
}

// Connect registers a handle under a user. Registering the same handle twice is a no-op.
// A handle registered under another user is moved, a handle belongs to one user at a time.
func (r *Registry) Connect(userID string, handle domain.Handle) {
	hs := r.handleShard(handle)
	hs.mu.Lock()
	defer hs.mu.Unlock()

	if previous, ok := hs.owners[handle]; ok {
		if previous == userID {
			return
		}
		r.removeSession(previous, handle)
	}
	hs.owners[handle] = userID

	us := r.userShard(userID)
	us.mu.Lock()
	defer us.mu.Unlock()
	if _, ok := us.sessions[userID]; !ok {
		us.sessions[userID] = make(Set)
	}
	us.sessions[userID][handle] = struct{}{}
}

// Disconnect removes a handle from whatever user it was registered under.
// It reports the owner and whether that user has no live handle left.
func (r *Registry) Disconnect(handle domain.Handle) (string, bool) {
	hs := r.handleShard(handle)
	hs.mu.Lock()
	defer hs.mu.Unlock()

	userID, ok := hs.owners[handle]
	if !ok {
		return "", false
	}
	delete(hs.owners, handle)
	return userID, r.removeSession(userID, handle)
}

func (r *Registry) IsOnline(userID string) bool {
	us := r.userShard(userID)
	us.mu.RLock()
	defer us.mu.RUnlock()
	return len(us.sessions[userID]) > 0
}

// HandlesFor returns a copy of the user's live handles, empty when offline.
func (r *Registry) HandlesFor(userID string) []domain.Handle {
	us := r.userShard(userID)
	us.mu.RLock()
	defer us.mu.RUnlock()

	handles := make([]domain.Handle, 0, len(us.sessions[userID]))
	for handle := range us.sessions[userID] {
		handles = append(handles, handle)
	}
	return handles
}

// OnlineCount returns the number of users holding at least one handle.
func (r *Registry) OnlineCount() int {
	count := 0
	for i := range r.users {
		r.users[i].mu.RLock()
		count += len(r.users[i].sessions)
		r.users[i].mu.RUnlock()
	}
	return count
}

// removeSession drops the handle from the user's set and deletes empty entries
// to prevent memory leaks over time. It returns true when the user went offline.
func (r *Registry) removeSession(userID string, handle domain.Handle) bool {
	us := r.userShard(userID)
	us.mu.Lock()
	defer us.mu.Unlock()

	handles, ok := us.sessions[userID]
	if !ok {
		return false
	}
	delete(handles, handle)
	if len(handles) == 0 {
		delete(us.sessions, userID)
		return true
	}
	return false
}

func (r *Registry) userShard(userID string) *userShard {
	return &r.users[xxhash.Sum64String(userID)%registryShards]
}

func (r *Registry) handleShard(handle domain.Handle) *handleShard {
	return &r.handles[xxhash.Sum64String(string(handle))%registryShards]
}
