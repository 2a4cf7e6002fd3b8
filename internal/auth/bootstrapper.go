package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type State int

const (
	StateIdle State = iota
	StateAuthenticating
	StateReady
	// StateDegraded is ready without a confirmed credential: sign-in failed
	// or did not finish within the timeout window.
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

const DefaultTimeout = 5 * time.Second

// Bootstrapper establishes the anonymous backend session. It always ends up
// ready: failures and slow sign-ins degrade instead of blocking the caller.
type Bootstrapper struct {
	provider Provider
	timeout  time.Duration
	logger   *zap.SugaredLogger
	now      func() time.Time

	mu      sync.Mutex
	state   State
	cred    Credential
	lastErr error
	done    chan struct{}
}

func NewBootstrapper(provider Provider, timeout time.Duration, logger *zap.SugaredLogger) *Bootstrapper {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bootstrapper{
		provider: provider,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Start runs the sign-in attempt if none has run yet and waits for it to
// settle. Concurrent callers share the same attempt. It returns the settled
// state, or the context error if ctx ends first.
func (b *Bootstrapper) Start(ctx context.Context) (State, error) {
	b.mu.Lock()
	switch b.state {
	case StateReady, StateDegraded:
		s := b.state
		b.mu.Unlock()
		return s, nil
	case StateIdle:
		b.state = StateAuthenticating
		b.done = make(chan struct{})
		go b.run(b.done)
	}
	done := b.done
	b.mu.Unlock()

	select {
	case <-done:
		return b.State(), nil
	case <-ctx.Done():
		return b.State(), ctx.Err()
	}
}

type signInResult struct {
	token string
	err   error
}

func (b *Bootstrapper) run(done chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	res := make(chan signInResult, 1)
	go func() {
		token, err := b.provider.SignInAnonymously(ctx)
		res <- signInResult{token: token, err: err}
	}()

	var (
		cred Credential
		err  error
	)
	select {
	case r := <-res:
		if r.err != nil {
			err = fmt.Errorf("%w: %v", ErrAuth, r.err)
			break
		}
		cred = ParseCredential(r.token)
		if cred.Token == "" {
			err = fmt.Errorf("%w: empty credential", ErrAuth)
		} else if cred.Expired(b.now()) {
			err = fmt.Errorf("%w: credential already expired", ErrAuth)
		}
	case <-ctx.Done():
		err = fmt.Errorf("%w after %s", ErrTimeout, b.timeout)
	}

	b.mu.Lock()
	if err != nil {
		b.state = StateDegraded
		b.cred = Credential{}
		b.lastErr = err
	} else {
		b.state = StateReady
		b.cred = cred
		b.lastErr = nil
	}
	b.mu.Unlock()
	close(done)

	if err != nil {
		b.logger.Warnw("auth degraded, continuing without session", "error", err)
		return
	}
	b.logger.Infow("auth ready", "uid", cred.UID)
}

func (b *Bootstrapper) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Ready reports whether the registry may be subscribed.
func (b *Bootstrapper) Ready() bool {
	s := b.State()
	return s == StateReady || s == StateDegraded
}

// Err is the reason for a degraded state.
func (b *Bootstrapper) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// Credential returns the current session, if any.
func (b *Bootstrapper) Credential() (Credential, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateReady {
		return Credential{}, false
	}
	return b.cred, true
}

// Token returns the bearer token for collection requests, or "".
func (b *Bootstrapper) Token() string {
	c, ok := b.Credential()
	if !ok || c.Expired(b.now()) {
		return ""
	}
	return c.Token
}

// SignOut invalidates the session and returns to idle so the next Start
// signs in again. An attempt in progress is left to settle first.
func (b *Bootstrapper) SignOut(ctx context.Context) error {
	b.mu.Lock()
	if b.state == StateAuthenticating {
		done := b.done
		b.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		b.mu.Lock()
	}
	token := b.cred.Token
	b.state = StateIdle
	b.cred = Credential{}
	b.lastErr = nil
	b.mu.Unlock()

	if token == "" {
		return nil
	}
	if err := b.provider.SignOut(ctx, token); err != nil {
		return fmt.Errorf("%w: sign out: %v", ErrAuth, err)
	}
	return nil
}
