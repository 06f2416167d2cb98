package locks

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKeyedSerializesSameKey(t *testing.T) {
	keyed := NewKeyed()

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := keyed.Lock("conversation-7")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, 100, counter)
}

func TestKeyedIndependentKeys(t *testing.T) {
	keyed := NewKeyed()

	unlockA := keyed.Lock("a")
	defer unlockA()

	acquired := make(chan struct{})
	go func() {
		unlockB := keyed.Lock("b")
		unlockB()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock on independent key blocked")
	}
}

func TestKeyedReleasesEntries(t *testing.T) {
	keyed := NewKeyed()

	unlock := keyed.Lock("gone")
	unlock()

	keyed.mu.Lock()
	defer keyed.mu.Unlock()
	require.Empty(t, keyed.entries)
}
