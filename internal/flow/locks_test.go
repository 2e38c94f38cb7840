package flow

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLockTable_BoundedWait(t *testing.T) {
	locks := newLockTable()

	release, err := locks.acquire("s1", 10*time.Millisecond)
	require.NoError(t, err)

	_, err = locks.acquire("s1", 20*time.Millisecond)
	require.ErrorIs(t, err, ErrSessionBusy)

	release()

	release, err = locks.acquire("s1", 10*time.Millisecond)
	require.NoError(t, err)
	release()
}

func TestLockTable_DifferentSessionsDoNotContend(t *testing.T) {
	locks := newLockTable()

	r1, err := locks.acquire("s1", 10*time.Millisecond)
	require.NoError(t, err)
	defer r1()

	r2, err := locks.acquire("s2", 10*time.Millisecond)
	require.NoError(t, err)
	defer r2()
}

func TestLockTable_SerializesWriters(t *testing.T) {
	locks := newLockTable()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		counter int
	)

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locks.acquire("shared", time.Second)
			if err != nil {
				return
			}
			mu.Lock()
			counter++
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	require.Equal(t, 32, counter)

	// all holders released: table is empty again
	locks.mu.Lock()
	require.Empty(t, locks.entries)
	locks.mu.Unlock()
}
