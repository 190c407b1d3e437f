package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_RunsJobsForOneKeySerially(t *testing.T) {
	d := NewDispatcher(4, zerolog.Nop())
	defer d.Stop()

	var running, overlap atomic.Int32
	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := d.Do(context.Background(), "room-a", func(context.Context) {
				if running.Add(1) > 1 {
					overlap.Add(1)
				}
				time.Sleep(100 * time.Microsecond)
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				running.Add(-1)
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Zero(t, overlap.Load())
	assert.Len(t, order, 50)
}

func TestDispatcher_ShardIndexIsStable(t *testing.T) {
	d := NewDispatcher(8, zerolog.Nop())
	defer d.Stop()

	for _, key := range []string{"general", "sales", "support-emea"} {
		first := d.shardIndex(key)
		assert.Equal(t, first, d.shardIndex(key))
		assert.GreaterOrEqual(t, first, 0)
		assert.Less(t, first, 8)
	}
}

func TestDispatcher_StoppedRejectsWork(t *testing.T) {
	d := NewDispatcher(2, zerolog.Nop())
	d.Stop()

	ran := false
	err := d.Do(context.Background(), "room", func(context.Context) { ran = true })
	require.ErrorIs(t, err, ErrDispatcherStopped)
	assert.False(t, ran)
}

func TestDispatcher_CancelledContext(t *testing.T) {
	d := NewDispatcher(1, zerolog.Nop())
	defer d.Stop()

	started, release := make(chan struct{}), make(chan struct{})
	go func() {
		_ = d.Do(context.Background(), "room", func(context.Context) {
			close(started)
			<-release
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Do(ctx, "room", func(context.Context) {})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestDispatcher_PanicDoesNotKillWorker(t *testing.T) {
	d := NewDispatcher(1, zerolog.Nop())
	defer d.Stop()

	require.NoError(t, d.Do(context.Background(), "room", func(context.Context) { panic("boom") }))

	ran := false
	require.NoError(t, d.Do(context.Background(), "room", func(context.Context) { ran = true }))
	assert.True(t, ran)
}
