package store

import (
	"fmt"

	"takjil/internal/venues"
)

// Attach subscribes to the remote collection. It is a no-op while a stream
// is active. Stream failures are sent on Errors and leave the store
// detached with its last known set.
func (s *Store) Attach() error {
	s.subMu.Lock()
	if s.sub != nil && s.sub.Active() {
		s.subMu.Unlock()
		return nil
	}
	s.gen++
	gen := s.gen
	s.subMu.Unlock()

	// the first snapshot may be delivered before Subscribe returns
	sub, err := s.remote.Subscribe(
		func(records []venues.Record) { s.onSnapshot(gen, records) },
		func(err error) { s.onStreamError(gen, err) },
	)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	s.subMu.Lock()
	if s.gen != gen {
		s.subMu.Unlock()
		sub.Unsubscribe()
		return nil
	}
	s.sub = sub
	s.subMu.Unlock()

	s.logger.Infow("venue stream attached", "generation", gen)
	return nil
}

// Detach ends the stream. Deliveries from it that are still in flight are
// dropped.
func (s *Store) Detach() {
	s.subMu.Lock()
	sub := s.sub
	s.sub = nil
	s.gen++
	s.subMu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// Attached reports whether a stream is active.
func (s *Store) Attached() bool {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return s.sub != nil && s.sub.Active()
}

// Errors carries stream failures. Only the most recent unread error is kept.
func (s *Store) Errors() <-chan error {
	return s.errs
}

func (s *Store) current(gen uint64) bool {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return gen == s.gen
}

func (s *Store) onSnapshot(gen uint64, records []venues.Record) {
	if !s.current(gen) {
		return
	}
	s.Ingest(records)
}

func (s *Store) onStreamError(gen uint64, err error) {
	if !s.current(gen) {
		return
	}
	s.logger.Errorw("venue stream failed, local set is now stale", "error", err)

	select {
	case <-s.errs:
	default:
	}
	select {
	case s.errs <- err:
	default:
	}
}
