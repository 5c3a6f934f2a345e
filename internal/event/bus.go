// Package event provides the pub/sub channel between the agent engine and
// the server's SSE writers, built on watermill's gochannel transport.
//
// The engine publishes session-scoped events; the HTTP layer subscribes,
// drains, and frames them. Publishing blocks when a subscriber's buffer is
// full, which is what throttles the step loop on slow clients.
package event

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/isocode-ai/isocode/internal/logging"
	"github.com/isocode-ai/isocode/pkg/types"
)

// topicPrefix namespaces session streams inside the shared pubsub.
const topicPrefix = "session."

// Bus is the process-wide event bus.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus creates a bus with a small per-subscriber buffer so slow consumers
// exert back-pressure on publishers.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 16, BlockPublishUntilSubscriberAck: true},
			watermill.NopLogger{},
		),
	}
}

// Publish sends one event onto a session's stream.
func (b *Bus) Publish(sessionID string, ev types.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	return b.pubsub.Publish(topicPrefix+sessionID, msg)
}

// Subscribe returns a channel of events for one session. The channel closes
// when ctx is cancelled or the bus shuts down.
func (b *Bus) Subscribe(ctx context.Context, sessionID string) (<-chan types.Event, error) {
	msgs, err := b.pubsub.Subscribe(ctx, topicPrefix+sessionID)
	if err != nil {
		return nil, err
	}

	out := make(chan types.Event)
	go func() {
		defer close(out)
		for msg := range msgs {
			var ev types.Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				logging.Warn().Err(err).Str("sessionID", sessionID).Msg("dropping undecodable event")
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Emitter binds the bus to one session for the engine's use.
func (b *Bus) Emitter(sessionID string) func(types.Event) error {
	return func(ev types.Event) error {
		return b.Publish(sessionID, ev)
	}
}

// Close shuts the bus down, closing all subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
