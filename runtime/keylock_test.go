package runtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyLock_Serializes_Same_Key(t *testing.T) {
	req := require.New(t)
	locks := NewKeyLock()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("bob")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	req.Equal(100, counter)
}
