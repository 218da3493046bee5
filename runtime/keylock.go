package runtime

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const keyLockShards = 256

// KeyLock serializes work per key (a user id) without one global lock.
// Two keys may share a shard; callers never hold more than one key at once.
type KeyLock struct {
	shards [keyLockShards]sync.Mutex
}

func NewKeyLock() *KeyLock {
	return &KeyLock{}
}

// Lock blocks until key is free and returns the matching unlock function.
func (k *KeyLock) Lock(key string) func() {
	mu := &k.shards[xxhash.Sum64String(key)%keyLockShards]
	mu.Lock()
	return mu.Unlock
}
