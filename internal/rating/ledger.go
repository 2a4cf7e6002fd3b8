package rating

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"takjil/internal/kv"
)

var ErrInvalidVote = errors.New("invalid stored vote")

type Vote string

const (
	Up   Vote = "up"
	Down Vote = "down"
)

func VoteOf(isUp bool) Vote {
	if isUp {
		return Up
	}
	return Down
}

// Result says what Rate did.
type Result int

const (
	Applied Result = iota
	AlreadyRated
	InFlight
)

func (r Result) String() string {
	switch r {
	case Applied:
		return "applied"
	case AlreadyRated:
		return "already rated"
	case InFlight:
		return "in flight"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// Bumper increments a venue's rating counter. The store implements it.
type Bumper interface {
	BumpRating(ctx context.Context, id string, isUp bool) error
}

// Ledger allows one vote per venue on this device.
type Ledger struct {
	kv     kv.Store
	bumper Bumper
	logger *zap.SugaredLogger

	mu       sync.Mutex
	inflight map[string]struct{}

	deviceMu sync.Mutex
}

func NewLedger(store kv.Store, bumper Bumper, logger *zap.SugaredLogger) *Ledger {
	return &Ledger{
		kv:       store,
		bumper:   bumper,
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
}

// DeviceID returns the persisted device identifier, minting and storing one
// on first use. It is a UUIDv7: a millisecond timestamp plus random bits.
func (l *Ledger) DeviceID(ctx context.Context) (string, error) {
	l.deviceMu.Lock()
	defer l.deviceMu.Unlock()

	id, err := l.kv.Get(ctx, kv.KeyDeviceID)
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		return "", fmt.Errorf("read device id: %w", err)
	}

	v7, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("mint device id: %w", err)
	}
	id = v7.String()
	if err := l.kv.Set(ctx, kv.KeyDeviceID, id); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}

	l.logger.Infow("minted device id", "device_id", id)
	return id, nil
}

// Rate records this device's vote on a venue and bumps its counter. A venue
// already voted on is left alone. The vote is persisted only after the
// counter update succeeds, so a failed Rate can be retried.
func (l *Ledger) Rate(ctx context.Context, venueID string, isUp bool) (Result, error) {
	l.mu.Lock()
	if _, busy := l.inflight[venueID]; busy {
		l.mu.Unlock()
		return InFlight, nil
	}
	l.inflight[venueID] = struct{}{}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.inflight, venueID)
		l.mu.Unlock()
	}()

	_, voted, err := l.UserRating(ctx, venueID)
	if err != nil {
		return Applied, err
	}
	if voted {
		return AlreadyRated, nil
	}

	if err := l.bumper.BumpRating(ctx, venueID, isUp); err != nil {
		return Applied, fmt.Errorf("bump rating: %w", err)
	}

	vote := VoteOf(isUp)
	if err := l.kv.Set(ctx, kv.VoteKey(venueID), string(vote)); err != nil {
		l.logger.Errorw("counter bumped but vote not persisted", "venue", venueID, "vote", vote, "error", err)
		return Applied, fmt.Errorf("persist vote: %w", err)
	}
	return Applied, nil
}

// UserRating reads this device's vote on a venue from local state only.
func (l *Ledger) UserRating(ctx context.Context, venueID string) (Vote, bool, error) {
	raw, err := l.kv.Get(ctx, kv.VoteKey(venueID))
	if errors.Is(err, kv.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read vote: %w", err)
	}

	switch v := Vote(raw); v {
	case Up, Down:
		return v, true, nil
	}
	return "", false, fmt.Errorf("%w: %q", ErrInvalidVote, raw)
}
