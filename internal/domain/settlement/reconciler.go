// Package settlement consumes asynchronous payment-completion events from
// the provider and reconciles them onto orders exactly once.
package settlement

import (
	"context"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// ErrInvalidPayload is returned when an event fails signature verification
// or cannot be parsed. Anything else the provider sends is acknowledged.
var ErrInvalidPayload = errors.New("invalid event payload")

// EventTypeCompleted is the only event type that mutates state. Every other
// type is acknowledged as a no-op.
const EventTypeCompleted = "checkout.session.completed"

// Event is the parsed provider notification. SessionID is only meaningful
// for completion events; the rest of the payload stays opaque.
type Event struct {
	ID        string
	Type      string
	SessionID string
}

// Verifier authenticates and parses a raw provider payload. Implementations
// must return an error wrapping ErrInvalidPayload for signature or parse
// failures.
type Verifier interface {
	VerifyAndParse(payload []byte, sigHeader string) (*Event, error)
}

// OrderStore is the single write the reconciler needs: a conditional
// unpaid-to-paid transition keyed by session id.
type OrderStore interface {
	MarkPaidBySession(ctx context.Context, sessionID string) (bool, error)
}

// Reconciler applies completion events to orders idempotently.
//
// Idempotency comes solely from the store's conditional write: two
// concurrent deliveries for the same session can both observe unpaid, but
// only one UPDATE transitions the row. The in-process bloom filter only
// labels likely replays for logging. A hit never skips the write: bloom
// positives are probabilistic, and skipping on a false positive would
// acknowledge a fresh event while leaving its order unpaid.
type Reconciler struct {
	events Verifier
	orders OrderStore

	mu   sync.Mutex
	seen *bloom.BloomFilter
}

const (
	seenCapacity = 1_000_000
	seenFPR      = 0.001
)

// NewReconciler creates a Reconciler over the given verifier and store.
func NewReconciler(events Verifier, orders OrderStore) *Reconciler {
	return &Reconciler{
		events: events,
		orders: orders,
		seen:   bloom.NewWithEstimates(seenCapacity, seenFPR),
	}
}

// Reconcile verifies the payload and, for a completion event, marks the
// matching order paid.
//
// A nil return means "accepted": that covers the actual transition as much
// as every benign no-op (irrelevant event type, unknown or superseded
// session, already-paid order, replayed delivery). ErrInvalidPayload means
// the delivery is rejected. Any other error is an internal failure the
// provider should retry.
func (r *Reconciler) Reconcile(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := r.events.VerifyAndParse(payload, sigHeader)
	if err != nil {
		return err
	}

	lg := zctx.From(ctx)

	if event.Type != EventTypeCompleted {
		lg.Debug("Ignoring event", zap.String("type", event.Type))
		return nil
	}
	if event.SessionID == "" {
		lg.Warn("Completion event without session id", zap.String("event_id", event.ID))
		return nil
	}

	if event.ID != "" && r.alreadySeen(event.ID) {
		lg.Debug("Event id seen before, replay likely", zap.String("event_id", event.ID))
	}

	updated, err := r.orders.MarkPaidBySession(ctx, event.SessionID)
	if err != nil {
		return errors.Wrap(err, "mark order paid")
	}
	if event.ID != "" {
		r.markSeen(event.ID)
	}

	if updated {
		lg.Info("Order marked paid",
			zap.String("session_id", event.SessionID),
			zap.String("event_id", event.ID),
		)
	} else {
		// Unknown, superseded, or already settled session. All fine.
		lg.Debug("Completion event matched no unpaid order",
			zap.String("session_id", event.SessionID),
		)
	}
	return nil
}

func (r *Reconciler) alreadySeen(eventID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen.TestString(eventID)
}

func (r *Reconciler) markSeen(eventID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen.AddString(eventID)
}
