package rating

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"takjil/internal/kv"
	"takjil/internal/registry"
	"takjil/internal/store"
	"takjil/internal/venues"
)

func venue(id string) venues.Record {
	return venues.Record{
		ID:       id,
		Name:     "Masjid " + id,
		Location: venues.Location{Lat: -6.2, Lng: 106.8},
		Menu:     []string{},
		Status:   venues.StatusVerified,
	}
}

func setup(t *testing.T, seed ...venues.Record) (*Ledger, *store.Store, *registry.Memory, *kv.Memory) {
	t.Helper()
	log := zap.NewNop().Sugar()
	remote := registry.NewMemory(seed...)
	mem := kv.NewMemory()
	s := store.New(remote, mem, nil, log)
	require.NoError(t, s.Attach())
	t.Cleanup(s.Detach)
	return NewLedger(mem, s, log), s, remote, mem
}

func TestLedger_RateIsIdempotent(t *testing.T) {
	l, s, remote, _ := setup(t, venue("a"))
	ctx := context.Background()

	res, err := l.Rate(ctx, "a", true)
	require.NoError(t, err)
	assert.Equal(t, Applied, res)

	res, err = l.Rate(ctx, "a", true)
	require.NoError(t, err)
	assert.Equal(t, AlreadyRated, res)

	res, err = l.Rate(ctx, "a", false)
	require.NoError(t, err)
	assert.Equal(t, AlreadyRated, res)

	r, _ := s.Get("a")
	assert.Equal(t, 1, r.ThumbsUp)
	assert.Equal(t, 0, r.ThumbsDown)
	stored, _ := remote.Get("a")
	assert.Equal(t, 1, stored.ThumbsUp)

	vote, ok, err := l.UserRating(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Up, vote)
}

func TestLedger_OverlappingRate(t *testing.T) {
	l, s, remote, _ := setup(t, venue("a"))
	ctx := context.Background()

	release := remote.Hold(registry.OpUpdate)
	first := make(chan Result, 1)
	go func() {
		res, err := l.Rate(ctx, "a", false)
		assert.NoError(t, err)
		first <- res
	}()

	require.Eventually(t, func() bool {
		r, _ := s.Get("a")
		return r.ThumbsDown == 1
	}, time.Second, time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Rate(ctx, "a", false)
			assert.NoError(t, err)
			assert.Equal(t, InFlight, res)
		}()
	}
	wg.Wait()

	release()
	assert.Equal(t, Applied, <-first)

	r, _ := s.Get("a")
	assert.Equal(t, 1, r.ThumbsDown)
	vote, ok, _ := l.UserRating(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, Down, vote)
}

func TestLedger_FailedBumpCanBeRetried(t *testing.T) {
	l, s, remote, _ := setup(t, venue("a"))
	ctx := context.Background()

	remote.Fail(registry.OpUpdate, registry.ErrNetwork)
	_, err := l.Rate(ctx, "a", true)
	assert.ErrorIs(t, err, registry.ErrNetwork)

	_, ok, err := l.UserRating(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	res, err := l.Rate(ctx, "a", true)
	require.NoError(t, err)
	assert.Equal(t, Applied, res)

	// one vote from this device, however many attempts it took
	stored, _ := remote.Get("a")
	assert.Equal(t, 1, stored.ThumbsUp)
	r, _ := s.Get("a")
	assert.Equal(t, 1, r.ThumbsUp)

	res, err = l.Rate(ctx, "a", true)
	require.NoError(t, err)
	assert.Equal(t, AlreadyRated, res)
	stored, _ = remote.Get("a")
	assert.Equal(t, 1, stored.ThumbsUp)
}

func TestLedger_UnknownVenue(t *testing.T) {
	l, _, _, _ := setup(t)
	_, err := l.Rate(context.Background(), "missing", true)
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestLedger_VotesArePerVenue(t *testing.T) {
	l, s, _, _ := setup(t, venue("a"), venue("b"))
	ctx := context.Background()

	_, err := l.Rate(ctx, "a", true)
	require.NoError(t, err)
	res, err := l.Rate(ctx, "b", false)
	require.NoError(t, err)
	assert.Equal(t, Applied, res)

	b, _ := s.Get("b")
	assert.Equal(t, 1, b.ThumbsDown)
}

func TestLedger_UserRating(t *testing.T) {
	mem := kv.NewMemory()
	l := NewLedger(mem, nil, zap.NewNop().Sugar())
	ctx := context.Background()

	_, ok, err := l.UserRating(ctx, "x")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mem.Set(ctx, kv.VoteKey("x"), "down"))
	vote, ok, err := l.UserRating(ctx, "x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Down, vote)

	require.NoError(t, mem.Set(ctx, kv.VoteKey("y"), "sideways"))
	_, _, err = l.UserRating(ctx, "y")
	assert.ErrorIs(t, err, ErrInvalidVote)
}

func TestLedger_DeviceID(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop().Sugar()
	mem := kv.NewMemory()

	first, err := NewLedger(mem, nil, log).DeviceID(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	again, err := NewLedger(mem, nil, log).DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, again, "same persisted environment")

	fresh, err := NewLedger(kv.NewMemory(), nil, log).DeviceID(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, fresh)
	assert.NotEqual(t, first, fresh)
}

func TestLedger_DeviceIDMintedOnce(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(kv.NewMemory(), nil, zap.NewNop().Sugar())

	var wg sync.WaitGroup
	ids := make([]string, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := l.DeviceID(ctx)
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

type brokenKV struct{ kv.Store }

func (brokenKV) Get(context.Context, string) (string, error) {
	return "", errors.New("disk gone")
}

func TestLedger_StorageErrors(t *testing.T) {
	l := NewLedger(brokenKV{kv.NewMemory()}, nil, zap.NewNop().Sugar())

	_, err := l.DeviceID(context.Background())
	assert.Error(t, err)

	_, err = l.Rate(context.Background(), "a", true)
	assert.Error(t, err)
}

func TestResult_String(t *testing.T) {
	assert.Equal(t, "applied", Applied.String())
	assert.Equal(t, "already rated", AlreadyRated.String())
	assert.Equal(t, "in flight", InFlight.String())
}
