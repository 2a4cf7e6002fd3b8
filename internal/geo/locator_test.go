package geo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocator_CoalescesConcurrentCalls(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	src := PositionFunc(func(ctx context.Context) (Point, error) {
		calls.Add(1)
		<-release
		return Point{Lat: -6.2, Lng: 106.8}, nil
	})
	l := NewLocator(src)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]Point, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = l.Current(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	// give the remaining callers time to join the pending fetch
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, Point{Lat: -6.2, Lng: 106.8}, results[i])
	}
}

func TestLocator_Errors(t *testing.T) {
	t.Run("permission denied passes through", func(t *testing.T) {
		l := NewLocator(PositionFunc(func(ctx context.Context) (Point, error) {
			return Point{}, ErrPermissionDenied
		}))
		_, err := l.Current(context.Background())
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("unknown failures become unavailable", func(t *testing.T) {
		l := NewLocator(PositionFunc(func(ctx context.Context) (Point, error) {
			return Point{}, errors.New("gps timeout")
		}))
		_, err := l.Current(context.Background())
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("no source", func(t *testing.T) {
		_, err := NewLocator(nil).Current(context.Background())
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}
