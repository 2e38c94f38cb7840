package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"medauth-service/internal/auth"
)

func testSession(id string, expiresAt time.Time) Session {
	now := time.Unix(1_700_000_000, 0)
	return Session{
		SessionID: id,
		Role:      auth.RoleStaff,
		State:     StateCredentialsPending,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}
}

func TestMemoryStore_CRUD(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	require.NoError(t, store.Create(ctx, testSession("s1", expires)))
	require.Error(t, store.Create(ctx, testSession("s1", expires)), "duplicate id")
	require.Error(t, store.Create(ctx, testSession("", expires)), "missing id")

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, StateCredentialsPending, got.State)

	got.State = StateAccepted // mutating the copy must not touch the store
	again, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, StateCredentialsPending, again.State)

	again.State = StateAwaitingBiometric
	require.NoError(t, store.Update(ctx, *again))

	updated, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, StateAwaitingBiometric, updated.State)

	require.Error(t, store.Update(ctx, testSession("missing", expires)))

	require.NoError(t, store.Delete(ctx, "s1"))
	gone, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.Nil(t, gone)

	// delete is idempotent
	require.NoError(t, store.Delete(ctx, "s1"))
}

func TestMemoryStore_SweepEvictsOnlyExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, store.Create(ctx, testSession("stale", time.Now().Add(-time.Second))))
	require.NoError(t, store.Create(ctx, testSession("live", time.Now().Add(time.Hour))))

	var mu sync.Mutex
	evicted := make(map[string]int)

	go store.Sweep(ctx, 10*time.Millisecond, func(ctx context.Context, id string) bool {
		mu.Lock()
		defer mu.Unlock()
		evicted[id]++
		return true
	})

	require.Eventually(t, func() bool {
		got, err := store.Get(context.Background(), "stale")
		return err == nil && got == nil
	}, time.Second, 5*time.Millisecond)

	live, err := store.Get(ctx, "live")
	require.NoError(t, err)
	require.NotNil(t, live)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, evicted["stale"])
	require.Zero(t, evicted["live"])
}

func TestMemoryStore_SweepRespectsEvictVeto(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, store.Create(ctx, testSession("held", time.Now().Add(-time.Second))))

	var mu sync.Mutex
	calls := 0

	go store.Sweep(ctx, 10*time.Millisecond, func(ctx context.Context, id string) bool {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return false // caller not ready to drop it yet
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 2
	}, time.Second, 5*time.Millisecond)

	// vetoed session survives and gets retried next cycle
	got, err := store.Get(ctx, "held")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n))
			_ = store.Create(ctx, testSession(id, expires))
			_, _ = store.Get(ctx, id)
			_ = store.Delete(ctx, id)
		}(i)
	}
	wg.Wait()
}

func TestGenerateID(t *testing.T) {
	a, err := GenerateID()
	require.NoError(t, err)
	b, err := GenerateID()
	require.NoError(t, err)

	require.Len(t, a, 43) // 32 random bytes, base64url without padding
	require.NotEqual(t, a, b)
}
