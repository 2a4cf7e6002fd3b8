package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"takjil/internal/kv"
)

var ErrNoSession = errors.New("no admin session")

var validate = validator.New(validator.WithRequiredStructEnabled())

const RoleAdmin = "admin"

// Session is the persisted moderator session.
type Session struct {
	UID   string `json:"uid" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"oneof=admin user"`
}

func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// Sessions keeps the moderator session under the "session" key.
type Sessions struct {
	kv   kv.Store
	boot *Bootstrapper
}

func NewSessions(store kv.Store, boot *Bootstrapper) *Sessions {
	return &Sessions{kv: store, boot: boot}
}

// Login records an admin session for email. The uid is the backend session
// uid when one is known.
func (s *Sessions) Login(ctx context.Context, email string) (Session, error) {
	sess := Session{
		UID:   uuid.NewString(),
		Email: strings.TrimSpace(email),
		Role:  RoleAdmin,
	}
	if s.boot != nil {
		if c, ok := s.boot.Credential(); ok && c.UID != "" {
			sess.UID = c.UID
		}
	}

	if err := validate.Struct(sess); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrAuth, err)
	}

	b, err := json.Marshal(sess)
	if err != nil {
		return Session{}, err
	}
	if err := s.kv.Set(ctx, kv.KeySession, string(b)); err != nil {
		return Session{}, fmt.Errorf("persist session: %w", err)
	}
	return sess, nil
}

// Current returns the persisted session, or ErrNoSession.
func (s *Sessions) Current(ctx context.Context) (Session, error) {
	raw, err := s.kv.Get(ctx, kv.KeySession)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return Session{}, ErrNoSession
		}
		return Session{}, err
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return Session{}, fmt.Errorf("%w: corrupt session: %v", ErrNoSession, err)
	}
	if err := validate.Struct(sess); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	return sess, nil
}

// Logout forgets the moderator session and signs the backend session out.
func (s *Sessions) Logout(ctx context.Context) error {
	if err := s.kv.Delete(ctx, kv.KeySession); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	if s.boot == nil {
		return nil
	}
	return s.boot.SignOut(ctx)
}
