package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/tidwall/btree"
	"go.uber.org/zap"

	"takjil/internal/kv"
	"takjil/internal/registry"
	"takjil/internal/venues"
)

// Images resolves the image of a submission that did not name one.
type Images interface {
	Placeholder() string
	Upload(ctx context.Context, data []byte) (string, error)
}

// Store is the local mirror of the venue collection. Remote snapshots
// replace it wholesale; local mutations are applied before the backend
// confirms them and are kept if the backend write fails, until the next
// snapshot says otherwise.
type Store struct {
	remote registry.Client
	kv     kv.Store
	images Images
	logger *zap.SugaredLogger
	now    func() time.Time

	mu    sync.RWMutex
	index *btree.BTree
	// confirmed is the last set the backend delivered, without local changes.
	confirmed *btree.BTree
	digest    uint64
	live      bool
	watchers  map[int]chan []venues.Record
	nextW     int

	subMu sync.Mutex
	sub   *registry.Subscription
	gen   uint64
	errs  chan error
}

func New(remote registry.Client, store kv.Store, images Images, logger *zap.SugaredLogger) *Store {
	return &Store{
		remote:    remote,
		kv:        store,
		images:    images,
		logger:    logger,
		now:       time.Now,
		index:     btree.NewNonConcurrent(byID),
		confirmed: btree.NewNonConcurrent(byID),
		watchers:  make(map[int]chan []venues.Record),
		errs:      make(chan error, 1),
	}
}

func byID(a, b interface{}) bool {
	return a.(*venues.Record).ID < b.(*venues.Record).ID
}

// Ingest replaces the local set with snapshot. Nothing from earlier
// snapshots or local mutations survives unless snapshot contains it.
func (s *Store) Ingest(snapshot []venues.Record) {
	s.replace(snapshot, true)
}

func (s *Store) replace(snapshot []venues.Record, persist bool) {
	index := btree.NewNonConcurrent(byID)
	confirmed := btree.NewNonConcurrent(byID)
	for _, r := range snapshot {
		r := venues.Clone(r)
		// records are replaced, never changed in place, so the trees can share them
		index.Set(&r)
		confirmed.Set(&r)
	}

	s.mu.Lock()
	s.index = index
	s.confirmed = confirmed
	if persist {
		s.live = true
	}
	changed, encoded := s.refreshLocked()
	s.mu.Unlock()

	if changed && persist {
		if err := s.kv.Set(context.Background(), kv.KeyCachedSnapshot, string(encoded)); err != nil {
			s.logger.Warnw("could not cache snapshot", "error", err)
		}
	}
}

// refreshLocked recomputes the digest and notifies watchers when the set
// changed. It returns the encoded set.
func (s *Store) refreshLocked() (bool, []byte) {
	records := s.allLocked()
	encoded, err := json.Marshal(records)
	if err != nil {
		// Record only holds plain values
		panic("could not encode venue set: " + err.Error())
	}

	digest := xxhash.Sum64(encoded)
	if digest == s.digest {
		return false, encoded
	}
	s.digest = digest

	for _, ch := range s.watchers {
		publish(ch, venues.CloneAll(records))
	}
	return true, encoded
}

// publish replaces whatever the watcher has not read yet.
func publish(ch chan []venues.Record, records []venues.Record) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- records:
	default:
	}
}

func (s *Store) allLocked() []venues.Record {
	out := make([]venues.Record, 0, s.index.Len())
	s.index.Ascend(nil, func(i interface{}) bool {
		out = append(out, *i.(*venues.Record))
		return true
	})
	return out
}

// LoadCached fills an empty store from the cached snapshot so lists can be
// shown before the first live snapshot arrives.
func (s *Store) LoadCached(ctx context.Context) error {
	records, err := ReadCached(ctx, s.kv)
	if err != nil {
		return err
	}
	if records == nil {
		return nil
	}

	s.mu.RLock()
	live := s.live
	s.mu.RUnlock()
	if live {
		return nil
	}

	s.replace(records, false)
	return nil
}

// ReadCached returns the venue set cached by the last live snapshot, or nil
// when nothing is cached.
func ReadCached(ctx context.Context, store kv.Store) ([]venues.Record, error) {
	raw, err := store.Get(ctx, kv.KeyCachedSnapshot)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cached snapshot: %w", err)
	}

	records := []venues.Record{}
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("decode cached snapshot: %w", err)
	}
	return records, nil
}

// Live reports whether at least one remote snapshot has been ingested.
func (s *Store) Live() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live
}

// Snapshot returns every record, rejected ones included, ordered by id.
func (s *Store) Snapshot() []venues.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return venues.CloneAll(s.allLocked())
}

// Get looks a record up by id regardless of its status.
func (s *Store) Get(id string) (venues.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.index.Get(&venues.Record{ID: id})
	if i == nil {
		return venues.Record{}, false
	}
	return venues.Clone(*i.(*venues.Record)), true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Len()
}

// Watch returns a channel that receives the full set after every change.
// Slow readers only see the latest set. cancel closes the channel.
func (s *Store) Watch() (<-chan []venues.Record, func()) {
	ch := make(chan []venues.Record, 1)

	s.mu.Lock()
	id := s.nextW
	s.nextW++
	s.watchers[id] = ch
	publish(ch, venues.CloneAll(s.allLocked()))
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			close(ch)
			s.mu.Unlock()
		})
	}
}
