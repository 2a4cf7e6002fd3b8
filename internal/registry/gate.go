package registry

import "takjil/internal/venues"

// Readiness is satisfied by the auth bootstrapper.
type Readiness interface {
	Ready() bool
}

// Gated refuses to open streams until auth has settled.
type Gated struct {
	Client
	ready Readiness
}

func Gate(c Client, r Readiness) *Gated {
	return &Gated{Client: c, ready: r}
}

func (g *Gated) Subscribe(onSnapshot func([]venues.Record), onError func(error)) (*Subscription, error) {
	if !g.ready.Ready() {
		return nil, ErrNotReady
	}
	return g.Client.Subscribe(onSnapshot, onError)
}

var _ Client = (*Gated)(nil)
