package settlement

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockVerifier struct {
	event *Event
	err   error
}

func (m *mockVerifier) VerifyAndParse(_ []byte, _ string) (*Event, error) {
	return m.event, m.err
}

type mockStore struct {
	mu    sync.Mutex
	paid  map[string]bool
	calls int
	err   error
}

func newMockStore(sessions ...string) *mockStore {
	m := &mockStore{paid: make(map[string]bool, len(sessions))}
	for _, s := range sessions {
		m.paid[s] = false
	}
	return m
}

func (m *mockStore) MarkPaidBySession(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return false, m.err
	}
	paid, ok := m.paid[sessionID]
	if !ok || paid {
		return false, nil
	}
	m.paid[sessionID] = true
	return true, nil
}

// --- Tests ---

func TestReconcile_CompletionMarksPaid(t *testing.T) {
	store := newMockStore("cs_1")
	r := NewReconciler(&mockVerifier{event: &Event{
		ID:        "evt_1",
		Type:      EventTypeCompleted,
		SessionID: "cs_1",
	}}, store)

	err := r.Reconcile(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err)
	assert.True(t, store.paid["cs_1"])
}

func TestReconcile_ReplayIsNoOp(t *testing.T) {
	store := newMockStore("cs_1")
	r := NewReconciler(&mockVerifier{event: &Event{
		ID:        "evt_1",
		Type:      EventTypeCompleted,
		SessionID: "cs_1",
	}}, store)

	require.NoError(t, r.Reconcile(context.Background(), []byte("{}"), "sig"))
	require.NoError(t, r.Reconcile(context.Background(), []byte("{}"), "sig"))

	assert.True(t, store.paid["cs_1"])
	assert.Equal(t, 2, store.calls, "the conditional write absorbs the replay, never the filter")
}

func TestReconcile_FilterHitStillReachesStore(t *testing.T) {
	store := newMockStore("cs_1")
	r := NewReconciler(&mockVerifier{event: &Event{
		ID:        "evt_fresh",
		Type:      EventTypeCompleted,
		SessionID: "cs_1",
	}}, store)

	// A fresh event id can test positive in the filter without ever having
	// been delivered. The order must still transition.
	r.markSeen("evt_fresh")

	require.NoError(t, r.Reconcile(context.Background(), []byte("{}"), "sig"))
	assert.True(t, store.paid["cs_1"])
	assert.Equal(t, 1, store.calls)
}

func TestReconcile_ReplayWithoutEventIDStillIdempotent(t *testing.T) {
	store := newMockStore("cs_1")
	r := NewReconciler(&mockVerifier{event: &Event{
		Type:      EventTypeCompleted,
		SessionID: "cs_1",
	}}, store)

	require.NoError(t, r.Reconcile(context.Background(), []byte("{}"), "sig"))
	require.NoError(t, r.Reconcile(context.Background(), []byte("{}"), "sig"))

	assert.True(t, store.paid["cs_1"])
	assert.Equal(t, 2, store.calls, "conditional write absorbs the replay")
}

func TestReconcile_UnknownSessionAccepted(t *testing.T) {
	store := newMockStore()
	r := NewReconciler(&mockVerifier{event: &Event{
		ID:        "evt_1",
		Type:      EventTypeCompleted,
		SessionID: "cs_stale",
	}}, store)

	err := r.Reconcile(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err, "stale or foreign sessions are acknowledged")
}

func TestReconcile_IrrelevantTypeAccepted(t *testing.T) {
	store := newMockStore("cs_1")
	r := NewReconciler(&mockVerifier{event: &Event{
		ID:   "evt_2",
		Type: "payment_intent.created",
	}}, store)

	err := r.Reconcile(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err)
	assert.Zero(t, store.calls)
	assert.False(t, store.paid["cs_1"])
}

func TestReconcile_InvalidPayloadRejected(t *testing.T) {
	store := newMockStore("cs_1")
	r := NewReconciler(&mockVerifier{err: ErrInvalidPayload}, store)

	err := r.Reconcile(context.Background(), []byte("junk"), "bad-sig")
	require.ErrorIs(t, err, ErrInvalidPayload)
	assert.Zero(t, store.calls)
}

func TestReconcile_StoreFailurePropagates(t *testing.T) {
	store := newMockStore("cs_1")
	store.err = assert.AnError
	r := NewReconciler(&mockVerifier{event: &Event{
		ID:        "evt_3",
		Type:      EventTypeCompleted,
		SessionID: "cs_1",
	}}, store)

	err := r.Reconcile(context.Background(), []byte("{}"), "sig")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidPayload)
}

func TestReconcile_RetryAfterStoreFailureReachesStore(t *testing.T) {
	store := newMockStore("cs_1")
	store.err = assert.AnError
	r := NewReconciler(&mockVerifier{event: &Event{
		ID:        "evt_4",
		Type:      EventTypeCompleted,
		SessionID: "cs_1",
	}}, store)

	require.Error(t, r.Reconcile(context.Background(), []byte("{}"), "sig"))

	// The provider redelivers after an error; the retry must reach the store.
	store.mu.Lock()
	store.err = nil
	store.mu.Unlock()
	require.NoError(t, r.Reconcile(context.Background(), []byte("{}"), "sig"))

	assert.True(t, store.paid["cs_1"])
	assert.Equal(t, 2, store.calls)
}

func TestReconcile_ConcurrentDeliveriesEndPaid(t *testing.T) {
	store := newMockStore("cs_1")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		// Distinct event ids, same session: the bloom fast path does not
		// apply, the conditional write has to.
		r := NewReconciler(&mockVerifier{event: &Event{
			Type:      EventTypeCompleted,
			SessionID: "cs_1",
		}}, store)
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.Reconcile(context.Background(), []byte("{}"), "sig"))
		}()
	}
	wg.Wait()

	assert.True(t, store.paid["cs_1"])
}
