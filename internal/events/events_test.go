package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"agora/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBusDeliversToHandlers(t *testing.T) {
	bus := NewBus(zap.NewNop(), 16, 2)

	var (
		mu       sync.Mutex
		received []string
		done     = make(chan struct{}, 3)
	)
	bus.Subscribe(HandlerFunc{
		ID: "collect",
		Func: func(ctx context.Context, event models.Event) error {
			mu.Lock()
			received = append(received, event.Type)
			mu.Unlock()
			done <- struct{}{}
			return nil
		},
	})

	bus.Start(context.Background())
	defer bus.Stop(time.Second)

	for _, typ := range []string{models.EventInstanceCreate, models.EventBadgeAssign, models.EventInstanceEdit} {
		require.True(t, bus.Publish(models.Event{ID: typ, Type: typ, ActorID: 1}))
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event delivery")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{models.EventInstanceCreate, models.EventBadgeAssign, models.EventInstanceEdit}, received)
}

func TestBusDropsWhenFull(t *testing.T) {
	// no workers started, so the queue never drains
	bus := NewBus(zap.NewNop(), 1, 1)

	assert.True(t, bus.Publish(models.Event{ID: "1", Type: "t"}))
	assert.False(t, bus.Publish(models.Event{ID: "2", Type: "t"}), "full queue must drop, not block")

	stats := bus.Stats()
	assert.Equal(t, int64(1), stats.Published)
	assert.Equal(t, int64(1), stats.Dropped)
}

func TestBusHandlerFailureDoesNotStopOthers(t *testing.T) {
	bus := NewBus(zap.NewNop(), 4, 1)

	delivered := make(chan string, 2)
	bus.Subscribe(HandlerFunc{
		ID:   "failing",
		Func: func(ctx context.Context, event models.Event) error { return assert.AnError },
	})
	bus.Subscribe(HandlerFunc{
		ID: "working",
		Func: func(ctx context.Context, event models.Event) error {
			delivered <- event.ID
			return nil
		},
	})

	bus.Start(context.Background())
	defer bus.Stop(time.Second)

	require.True(t, bus.Publish(models.Event{ID: "e1", Type: "t"}))

	select {
	case id := <-delivered:
		assert.Equal(t, "e1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("second handler never ran")
	}
}
