package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"takjil/internal/venues"
)

func seedRecord(id, name string, status venues.Status) venues.Record {
	return venues.Record{
		ID:        id,
		Name:      name,
		Address:   "Jakarta",
		Location:  venues.Location{Lat: -6.2, Lng: 106.8},
		Menu:      []string{"Dates"},
		Status:    status,
		CreatedAt: 1710000000000,
	}
}

type recorder struct {
	mu        sync.Mutex
	snapshots [][]venues.Record
	errs      []error
}

func (r *recorder) onSnapshot(s []venues.Record) {
	r.mu.Lock()
	r.snapshots = append(r.snapshots, s)
	r.mu.Unlock()
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *recorder) last() []venues.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return nil
	}
	return r.snapshots[len(r.snapshots)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func TestMemory_SubscribeDeliversFullSets(t *testing.T) {
	m := NewMemory(seedRecord("1", "Al-Hikmah", venues.StatusVerified))
	rec := &recorder{}

	sub, err := m.Subscribe(rec.onSnapshot, rec.onError)
	require.NoError(t, err)
	t.Cleanup(sub.Unsubscribe)

	require.Len(t, rec.last(), 1)

	id, err := m.Create(context.Background(), venues.Record{
		Name:     "Istiqlal",
		Location: venues.Location{Lat: -6.17, Lng: 106.83},
		Menu:     []string{"Tea"},
		Status:   venues.StatusPending,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Len(t, rec.last(), 2)

	status := venues.StatusRejected
	require.NoError(t, m.Update(context.Background(), id, venues.Patch{Status: &status}))
	got, ok := m.Get(id)
	require.True(t, ok)
	assert.Equal(t, venues.StatusRejected, got.Status)
	assert.Equal(t, 3, rec.count())
}

func TestMemory_Errors(t *testing.T) {
	m := NewMemory(seedRecord("1", "Al-Hikmah", venues.StatusVerified))
	ctx := context.Background()

	t.Run("validation", func(t *testing.T) {
		_, err := m.Create(ctx, venues.Record{Status: venues.StatusPending})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("not found", func(t *testing.T) {
		s := venues.StatusVerified
		err := m.Update(ctx, "missing", venues.Patch{Status: &s})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("injected failure is one-shot", func(t *testing.T) {
		m.Fail(OpUpdate, ErrNetwork)
		up := 1
		assert.ErrorIs(t, m.Update(ctx, "1", venues.Patch{ThumbsUp: &up}), ErrNetwork)
		assert.NoError(t, m.Update(ctx, "1", venues.Patch{ThumbsUp: &up}))
	})
}

func TestSubscription_UnsubscribeStopsCallbacks(t *testing.T) {
	m := NewMemory(seedRecord("1", "Al-Hikmah", venues.StatusVerified))
	rec := &recorder{}

	sub, err := m.Subscribe(rec.onSnapshot, rec.onError)
	require.NoError(t, err)
	sub.Unsubscribe()
	sub.Unsubscribe()

	m.Put(seedRecord("2", "Istiqlal", venues.StatusVerified))
	m.Break(errors.New("boom"))

	assert.Equal(t, 1, rec.count())
	assert.Empty(t, rec.errs)
	assert.False(t, sub.Active())
	assert.Equal(t, 0, m.Subscribers())

	select {
	case <-sub.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestSubscription_UnsubscribeFromCallback(t *testing.T) {
	m := NewMemory()
	var sub *Subscription
	calls := 0
	sub, err := m.Subscribe(func(s []venues.Record) {
		calls++
		if len(s) > 0 {
			sub.Unsubscribe()
		}
	}, nil)
	require.NoError(t, err)

	m.Put(seedRecord("1", "Al-Hikmah", venues.StatusVerified))
	m.Put(seedRecord("2", "Istiqlal", venues.StatusVerified))

	assert.Equal(t, 2, calls)
}

func TestSubscription_UnsubscribeWhileAnotherGoroutineDelivers(t *testing.T) {
	m := NewMemory()
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	sub, err := m.Subscribe(func([]venues.Record) {
		// the first call is the initial set, delivered inside Subscribe
		if calls.Add(1) == 2 {
			close(entered)
			<-release
		}
	}, nil)
	require.NoError(t, err)

	delivered := make(chan struct{})
	go func() {
		m.Put(seedRecord("1", "Al-Hikmah", venues.StatusVerified))
		close(delivered)
	}()
	<-entered

	returned := make(chan struct{})
	go func() {
		sub.Unsubscribe()
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Unsubscribe waited for the running callback")
	}
	assert.False(t, sub.Active())

	close(release)
	<-delivered

	m.Put(seedRecord("2", "Istiqlal", venues.StatusVerified))
	assert.Equal(t, int32(2), calls.Load(), "the running callback was the last one")
	assert.Equal(t, 0, m.Subscribers())
}

func TestSubscription_ErrorReportedOnceAndEndsStream(t *testing.T) {
	m := NewMemory()
	rec := &recorder{}
	sub, err := m.Subscribe(rec.onSnapshot, rec.onError)
	require.NoError(t, err)

	m.Break(ErrNetwork)
	m.Break(ErrNetwork)
	m.Put(seedRecord("1", "Al-Hikmah", venues.StatusVerified))

	require.Len(t, rec.errs, 1)
	assert.ErrorIs(t, rec.errs[0], ErrNetwork)
	assert.Equal(t, 1, rec.count())
	assert.False(t, sub.Active())
}

type readiness bool

func (r readiness) Ready() bool { return bool(r) }

func TestGate(t *testing.T) {
	m := NewMemory()

	_, err := Gate(m, readiness(false)).Subscribe(func([]venues.Record) {}, nil)
	assert.ErrorIs(t, err, ErrNotReady)

	sub, err := Gate(m, readiness(true)).Subscribe(func([]venues.Record) {}, nil)
	require.NoError(t, err)
	sub.Unsubscribe()
}
