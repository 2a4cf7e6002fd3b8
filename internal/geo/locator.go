package geo

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"
)

var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrUnavailable      = errors.New("location unavailable")
)

// PositionSource is the platform location service.
type PositionSource interface {
	Position(ctx context.Context) (Point, error)
}

// PositionFunc adapts a function to PositionSource.
type PositionFunc func(ctx context.Context) (Point, error)

func (f PositionFunc) Position(ctx context.Context) (Point, error) {
	return f(ctx)
}

// Locator fetches the device position. Calls made while a fetch is pending
// share its result instead of reaching the platform again.
type Locator struct {
	src   PositionSource
	group singleflight.Group
}

func NewLocator(src PositionSource) *Locator {
	return &Locator{src: src}
}

const positionKey = "position"

// Current returns the device position. Errors are always ErrPermissionDenied
// or ErrUnavailable (possibly wrapped), or the context error.
func (l *Locator) Current(ctx context.Context) (Point, error) {
	if l.src == nil {
		return Point{}, ErrUnavailable
	}

	ch := l.group.DoChan(positionKey, func() (interface{}, error) {
		// The shared fetch must outlive any single caller's cancellation.
		p, err := l.src.Position(context.WithoutCancel(ctx))
		if err != nil {
			return nil, classify(err)
		}
		return p, nil
	})

	select {
	case <-ctx.Done():
		return Point{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Point{}, res.Err
		}
		return res.Val.(Point), nil
	}
}

func classify(err error) error {
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
