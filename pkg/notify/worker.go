package notify

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quietriver/sitecache/pkg/cache"
	"github.com/quietriver/sitecache/pkg/lifecycle"
)

// Worker answers bus requests on behalf of the background cache controller.
type Worker struct {
	bus        *Bus
	registry   *cache.Registry
	controller *lifecycle.Controller
	logger     zerolog.Logger
}

// NewWorker creates the worker-side bus handler.
func NewWorker(bus *Bus, registry *cache.Registry, controller *lifecycle.Controller) *Worker {
	return &Worker{
		bus:        bus,
		registry:   registry,
		controller: controller,
		logger:     log.With().Str("component", "notify-worker").Logger(),
	}
}

// Serve handles bus requests until ctx is cancelled. Run it on its own
// goroutine; requests are handled one at a time in arrival order.
func (w *Worker) Serve(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-w.bus.Requests():
			w.handle(ctx, msg)
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg Message) {
	switch msg.Type {
	case MessageCacheStatusRequest:
		counts, err := w.registry.EntryCounts(ctx)
		reply := Message{Type: MessageCacheStatusReply, ID: msg.ID, Counts: counts}
		if err != nil {
			reply.Err = err.Error()
		}
		w.bus.Reply(reply)

	case MessageSkipWaiting:
		w.logger.Info().Msg("Skip-waiting signal received, activating")
		reply := Message{Type: MessageAck, ID: msg.ID}
		if err := w.controller.Activate(ctx); err != nil {
			reply.Err = err.Error()
		}
		w.bus.Reply(reply)

	default:
		w.logger.Warn().Int("type", int(msg.Type)).Msg("Unhandled bus message")
		w.bus.Reply(Message{Type: MessageAck, ID: msg.ID, Err: "unhandled message type"})
	}
}
