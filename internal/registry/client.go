package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"takjil/internal/venues"
)

var (
	ErrNetwork    = errors.New("network error")
	ErrValidation = errors.New("document rejected by backend")
	ErrNotFound   = errors.New("document not found")
	ErrNotReady   = errors.New("registry used before auth is ready")
)

// Client is the backend venue collection.
type Client interface {
	// Subscribe opens a live stream. Every change delivers the full current
	// document set to onSnapshot. A stream error is reported once through
	// onError and ends the stream; recover by subscribing again.
	Subscribe(onSnapshot func([]venues.Record), onError func(error)) (*Subscription, error)
	// Create submits a new document and returns the backend-assigned id.
	Create(ctx context.Context, r venues.Record) (string, error)
	// Update merges the patch into an existing document.
	Update(ctx context.Context, id string, patch venues.Patch) error
}

// Subscription is the handle of one live stream.
type Subscription struct {
	onSnapshot func([]venues.Record)
	onError    func(error)

	mu         sync.Mutex
	closed     atomic.Bool
	inCallback atomic.Bool
	stopOnce   sync.Once
	cancel     func()
	done       chan struct{}
}

func newSubscription(onSnapshot func([]venues.Record), onError func(error), cancel func()) *Subscription {
	if cancel == nil {
		cancel = func() {}
	}
	return &Subscription{
		onSnapshot: onSnapshot,
		onError:    onError,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Unsubscribe ends the stream. Once it returns no callback starts again.
// It is safe to call from inside a callback and more than once.
//
// Called while no callback runs, it also waits out a delivery that raced
// with it. Called while a callback is running, from that callback or from
// any other goroutine, it returns without waiting for that callback to
// finish; the running callback is the last one.
func (s *Subscription) Unsubscribe() {
	s.closed.Store(true)
	s.stop()
	if !s.inCallback.Load() {
		// wait out a delivery that passed the closed check before us
		s.mu.Lock()
		s.mu.Unlock()
	}
}

// Done is closed when the stream has ended for any reason.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Active reports whether callbacks may still be delivered.
func (s *Subscription) Active() bool {
	return !s.closed.Load()
}

func (s *Subscription) stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		close(s.done)
	})
}

func (s *Subscription) dispatch(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return false
	}
	s.inCallback.Store(true)
	defer s.inCallback.Store(false)
	fn()
	return true
}

func (s *Subscription) deliver(records []venues.Record) bool {
	return s.dispatch(func() {
		if s.onSnapshot != nil {
			s.onSnapshot(records)
		}
	})
}

// fail reports err once and terminates the stream.
func (s *Subscription) fail(err error) {
	s.dispatch(func() {
		s.closed.Store(true)
		if s.onError != nil {
			s.onError(err)
		}
	})
	s.stop()
}
