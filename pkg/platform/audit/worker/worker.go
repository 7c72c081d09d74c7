package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	audit "visitledger/pkg/platform/audit"
)

// ErrBufferFull is returned by Emit when the inbox has no room.
var ErrBufferFull = errors.New("audit buffer full")

const defaultCapacity = 1024

// Worker decouples registries from the event sink. Emit never blocks on the
// sink; Run drains the inbox into it until the context ends.
type Worker struct {
	sink    audit.Publisher
	inbox   chan audit.Event
	logger  *slog.Logger
	dropped atomic.Int64
	failed  atomic.Int64
}

func NewWorker(sink audit.Publisher, capacity int, logger *slog.Logger) *Worker {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{sink: sink, inbox: make(chan audit.Event, capacity), logger: logger}
}

// Emit enqueues the event, dropping it when the inbox is full.
func (w *Worker) Emit(_ context.Context, event audit.Event) error {
	select {
	case w.inbox <- event:
		return nil
	default:
		w.dropped.Add(1)
		return ErrBufferFull
	}
}

// Run forwards events to the sink. On cancellation it flushes whatever is
// already queued and returns ctx.Err().
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.flush(context.WithoutCancel(ctx))
			return ctx.Err()
		case event := <-w.inbox:
			w.forward(ctx, event)
		}
	}
}

// Dropped returns how many events were refused because the inbox was full.
func (w *Worker) Dropped() int64 {
	return w.dropped.Load()
}

// Failed returns how many events the sink rejected.
func (w *Worker) Failed() int64 {
	return w.failed.Load()
}

func (w *Worker) flush(ctx context.Context) {
	for {
		select {
		case event := <-w.inbox:
			w.forward(ctx, event)
		default:
			return
		}
	}
}

func (w *Worker) forward(ctx context.Context, event audit.Event) {
	if err := w.sink.Emit(ctx, event); err != nil {
		w.failed.Add(1)
		w.logger.WarnContext(ctx, "ledger event not delivered",
			"event_id", event.ID.String(),
			"action", string(event.Action),
			"error", err,
		)
	}
}
