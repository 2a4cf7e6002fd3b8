package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"takjil/internal/auth"
	"takjil/internal/geo"
	"takjil/internal/kv"
	"takjil/internal/rating"
	"takjil/internal/registry"
	"takjil/internal/store"
	"takjil/internal/venues"
)

// Deps are the collaborators a Service is built from.
type Deps struct {
	Auth     *auth.Bootstrapper
	Remote   registry.Client
	KV       kv.Store
	Position geo.PositionSource
	Images   store.Images
	Logger   *zap.SugaredLogger
	// Closers are released by Close, last first.
	Closers []io.Closer
}

// Service holds the sync core. Consumers receive it by reference.
type Service struct {
	Auth     *auth.Bootstrapper
	Sessions *auth.Sessions
	Registry *registry.Gated
	Store    *store.Store
	Ledger   *rating.Ledger
	Locator  *geo.Locator

	logger  *zap.SugaredLogger
	closers []io.Closer
}

func New(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	gated := registry.Gate(d.Remote, d.Auth)
	st := store.New(gated, d.KV, d.Images, logger.With("component", "store"))

	return &Service{
		Auth:     d.Auth,
		Sessions: auth.NewSessions(d.KV, d.Auth),
		Registry: gated,
		Store:    st,
		Ledger:   rating.NewLedger(d.KV, st, logger.With("component", "ledger")),
		Locator:  geo.NewLocator(d.Position),
		logger:   logger,
		closers:  d.Closers,
	}
}

// Boot shows the cached venue set, settles auth and opens the live stream.
// Auth failure degrades rather than failing Boot. The returned error is
// only about the stream; the cached set stays readable either way.
func (s *Service) Boot(ctx context.Context) (auth.State, error) {
	if err := s.Store.LoadCached(ctx); err != nil {
		s.logger.Warnw("ignoring unreadable cached snapshot", "error", err)
	}

	state, err := s.Auth.Start(ctx)
	if err != nil {
		return state, err
	}

	if err := s.Store.Attach(); err != nil {
		return state, err
	}
	s.logger.Infow("service booted", "auth", state.String(), "venues", s.Store.Len())
	return state, nil
}

// Errors reports stream failures. Call Resubscribe to recover.
func (s *Service) Errors() <-chan error {
	return s.Store.Errors()
}

func (s *Service) Resubscribe(ctx context.Context) error {
	if _, err := s.Auth.Start(ctx); err != nil {
		return err
	}
	return s.Store.Attach()
}

// Submit sends a draft on behalf of this device.
func (s *Service) Submit(ctx context.Context, d venues.Draft) (string, error) {
	if d.CreatedBy == "" {
		id, err := s.Ledger.DeviceID(ctx)
		if err != nil {
			return "", err
		}
		d.CreatedBy = id
	}
	return s.Store.Submit(ctx, d)
}

func (s *Service) Rate(ctx context.Context, venueID string, isUp bool) (rating.Result, error) {
	return s.Ledger.Rate(ctx, venueID, isUp)
}

// Moderate changes a venue's status. It needs an admin session.
func (s *Service) Moderate(ctx context.Context, venueID string, status venues.Status) error {
	sess, err := s.Sessions.Current(ctx)
	if err != nil {
		return err
	}
	if !sess.IsAdmin() {
		return fmt.Errorf("%w: %s is not a moderator", auth.ErrAuth, sess.Email)
	}
	return s.Store.SetStatus(ctx, venueID, status)
}

// Nearby locates the user and lists visible venues by distance.
func (s *Service) Nearby(ctx context.Context, limit int) (geo.Point, []store.Nearby, error) {
	origin, err := s.Locator.Current(ctx)
	if err != nil {
		return geo.Point{}, nil, err
	}
	return origin, s.Store.Nearby(origin, limit), nil
}

// Logout ends the admin session and signs in anonymously again.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.Sessions.Logout(ctx); err != nil {
		return err
	}
	_, err := s.Auth.Start(ctx)
	return err
}

// Close ends the stream and releases storage.
func (s *Service) Close() error {
	s.Store.Detach()

	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
