package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"takjil/internal/venues"
)

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
)

// Memory is an in-process collection with the same contract as the HTTP
// backend. It serves offline mode and tests.
type Memory struct {
	mu       sync.Mutex
	docs     map[string]venues.Record
	subs     map[*Subscription]struct{}
	failures map[Op][]error
	holds    map[Op]chan struct{}
}

func NewMemory(seed ...venues.Record) *Memory {
	m := &Memory{
		docs:     make(map[string]venues.Record),
		subs:     make(map[*Subscription]struct{}),
		failures: make(map[Op][]error),
		holds:    make(map[Op]chan struct{}),
	}
	for _, r := range seed {
		m.docs[r.ID] = r
	}
	return m
}

// Subscribe registers the callbacks and delivers the current set at once.
func (m *Memory) Subscribe(onSnapshot func([]venues.Record), onError func(error)) (*Subscription, error) {
	var sub *Subscription
	sub = newSubscription(onSnapshot, onError, func() {
		m.mu.Lock()
		delete(m.subs, sub)
		m.mu.Unlock()
	})

	m.mu.Lock()
	m.subs[sub] = struct{}{}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	sub.deliver(snap)
	return sub, nil
}

func (m *Memory) Create(ctx context.Context, r venues.Record) (string, error) {
	if err := m.enter(ctx, OpCreate); err != nil {
		return "", err
	}

	r.ID = uuid.NewString()
	if err := venues.Validate(r); err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}

	m.mu.Lock()
	m.docs[r.ID] = venues.Clone(r)
	m.mu.Unlock()

	m.broadcast()
	return r.ID, nil
}

func (m *Memory) Update(ctx context.Context, id string, patch venues.Patch) error {
	if err := m.enter(ctx, OpUpdate); err != nil {
		return err
	}

	m.mu.Lock()
	r, ok := m.docs[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	patch.Apply(&r)
	if err := venues.Validate(r); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	m.docs[id] = r
	m.mu.Unlock()

	m.broadcast()
	return nil
}

// enter applies an injected failure or hold for op.
func (m *Memory) enter(ctx context.Context, op Op) error {
	m.mu.Lock()
	hold := m.holds[op]
	var err error
	if queue := m.failures[op]; len(queue) > 0 {
		err, m.failures[op] = queue[0], queue[1:]
	}
	m.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrNetwork, ctx.Err())
		}
	}
	return err
}

// Fail makes the next call of op return err.
func (m *Memory) Fail(op Op, err error) {
	m.mu.Lock()
	m.failures[op] = append(m.failures[op], err)
	m.mu.Unlock()
}

// Hold blocks calls of op until the returned release func is called.
func (m *Memory) Hold(op Op) (release func()) {
	ch := make(chan struct{})
	m.mu.Lock()
	m.holds[op] = ch
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if m.holds[op] == ch {
				delete(m.holds, op)
			}
			m.mu.Unlock()
			close(ch)
		})
	}
}

// Put writes records as a server-side change and notifies subscribers.
func (m *Memory) Put(records ...venues.Record) {
	m.mu.Lock()
	for _, r := range records {
		m.docs[r.ID] = venues.Clone(r)
	}
	m.mu.Unlock()
	m.broadcast()
}

// Replace swaps the entire collection.
func (m *Memory) Replace(records ...venues.Record) {
	m.mu.Lock()
	m.docs = make(map[string]venues.Record, len(records))
	for _, r := range records {
		m.docs[r.ID] = venues.Clone(r)
	}
	m.mu.Unlock()
	m.broadcast()
}

// Break terminates every open stream with err.
func (m *Memory) Break(err error) {
	m.mu.Lock()
	subs := make([]*Subscription, 0, len(m.subs))
	for s := range m.subs {
		subs = append(subs, s)
	}
	m.mu.Unlock()

	for _, s := range subs {
		s.fail(err)
	}
}

// Get returns the stored document.
func (m *Memory) Get(id string) (venues.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.docs[id]
	return venues.Clone(r), ok
}

func (m *Memory) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *Memory) broadcast() {
	m.mu.Lock()
	snap := m.snapshotLocked()
	subs := make([]*Subscription, 0, len(m.subs))
	for s := range m.subs {
		subs = append(subs, s)
	}
	m.mu.Unlock()

	for _, s := range subs {
		s.deliver(venues.CloneAll(snap))
	}
}

func (m *Memory) snapshotLocked() []venues.Record {
	out := make([]venues.Record, 0, len(m.docs))
	for _, r := range m.docs {
		out = append(out, venues.Clone(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
