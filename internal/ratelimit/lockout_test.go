package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "authgate/pkg/domain-errors"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLockout(t *testing.T) {
	t.Run("allows attempts under the threshold", func(t *testing.T) {
		l := New(WithThreshold(3))

		require.NoError(t, l.Check("user@example.com", "10.0.0.1"))
		l.RecordFailure("user@example.com", "10.0.0.1")
		l.RecordFailure("user@example.com", "10.0.0.1")
		require.NoError(t, l.Check("user@example.com", "10.0.0.1"))
	})

	t.Run("locks at the threshold", func(t *testing.T) {
		l := New(WithThreshold(3))

		l.RecordFailure("user@example.com", "10.0.0.1")
		l.RecordFailure("user@example.com", "10.0.0.1")
		locked := l.RecordFailure("user@example.com", "10.0.0.1")
		assert.True(t, locked)

		err := l.Check("user@example.com", "10.0.0.1")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTooManyLoginAttempts))
	})

	t.Run("pairs are independent", func(t *testing.T) {
		l := New(WithThreshold(2))

		l.RecordFailure("user@example.com", "10.0.0.1")
		l.RecordFailure("user@example.com", "10.0.0.1")

		require.Error(t, l.Check("user@example.com", "10.0.0.1"))
		assert.NoError(t, l.Check("user@example.com", "10.0.0.2"))
		assert.NoError(t, l.Check("other@example.com", "10.0.0.1"))
	})

	t.Run("email matching ignores case and whitespace", func(t *testing.T) {
		l := New(WithThreshold(2))

		l.RecordFailure("User@Example.com", "10.0.0.1")
		l.RecordFailure(" user@example.com ", "10.0.0.1")

		require.Error(t, l.Check("user@example.com", "10.0.0.1"))
	})

	t.Run("success clears failure history", func(t *testing.T) {
		l := New(WithThreshold(3))

		l.RecordFailure("user@example.com", "10.0.0.1")
		l.RecordFailure("user@example.com", "10.0.0.1")
		l.RecordSuccess("user@example.com", "10.0.0.1")

		locked := l.RecordFailure("user@example.com", "10.0.0.1")
		assert.False(t, locked)
		assert.NoError(t, l.Check("user@example.com", "10.0.0.1"))
	})

	t.Run("lock expires after the window", func(t *testing.T) {
		clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
		l := New(WithThreshold(2), WithWindow(10*time.Minute), WithClock(clock.Now))

		l.RecordFailure("user@example.com", "10.0.0.1")
		l.RecordFailure("user@example.com", "10.0.0.1")
		require.Error(t, l.Check("user@example.com", "10.0.0.1"))

		clock.Advance(11 * time.Minute)
		assert.NoError(t, l.Check("user@example.com", "10.0.0.1"))
	})

	t.Run("old failures age out of the window", func(t *testing.T) {
		clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
		l := New(WithThreshold(3), WithWindow(10*time.Minute), WithClock(clock.Now))

		l.RecordFailure("user@example.com", "10.0.0.1")
		clock.Advance(11 * time.Minute)
		l.RecordFailure("user@example.com", "10.0.0.1")
		locked := l.RecordFailure("user@example.com", "10.0.0.1")

		assert.False(t, locked)
	})

	t.Run("prune removes stale pairs", func(t *testing.T) {
		clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
		l := New(WithThreshold(5), WithWindow(10*time.Minute), WithClock(clock.Now))

		l.RecordFailure("a@example.com", "10.0.0.1")
		l.RecordFailure("b@example.com", "10.0.0.2")

		assert.Zero(t, l.Prune())

		clock.Advance(11 * time.Minute)
		l.RecordFailure("b@example.com", "10.0.0.2")

		assert.Equal(t, 1, l.Prune())
		assert.NoError(t, l.Check("a@example.com", "10.0.0.1"))
	})

	t.Run("concurrent recording is safe", func(t *testing.T) {
		l := New(WithThreshold(1000))

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				l.RecordFailure("user@example.com", "10.0.0.1")
				_ = l.Check("user@example.com", "10.0.0.1")
			}()
		}
		wg.Wait()

		assert.NoError(t, l.Check("user@example.com", "10.0.0.1"))
	})
}
