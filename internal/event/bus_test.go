package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isocode-ai/isocode/pkg/types"
)

func TestPublishSubscribeOrder(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.Subscribe(ctx, "s1")
	require.NoError(t, err)

	emit := bus.Emitter("s1")
	go func() {
		_ = emit(types.ThoughtEvent("first"))
		_ = emit(types.ActionEvent("read_file", map[string]any{"path": "a"}))
		_ = emit(types.ObservationEvent("obs"))
		_ = emit(types.FinalEvent("done"))
	}()

	var kinds []string
	for i := 0; i < 4; i++ {
		select {
		case ev := <-events:
			kinds = append(kinds, ev.Type)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	assert.Equal(t, []string{"thought", "action", "observation", "final"}, kinds)
}

func TestSessionIsolation(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := bus.Subscribe(ctx, "a")
	require.NoError(t, err)
	b, err := bus.Subscribe(ctx, "b")
	require.NoError(t, err)

	require.NoError(t, bus.Publish("a", types.FinalEvent("for a")))

	select {
	case ev := <-a:
		assert.Equal(t, "for a", ev.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber a got nothing")
	}

	select {
	case ev := <-b:
		t.Fatalf("subscriber b received %v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribeCancellation(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	events, err := bus.Subscribe(ctx, "s")
	require.NoError(t, err)

	cancel()

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)
}
