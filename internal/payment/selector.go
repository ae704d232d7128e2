package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State of one payment-method selection.
type State string

const (
	StateUnselected       State = "unselected"
	StateSelected         State = "selected"
	StateAwaitingRedirect State = "awaiting_redirect"
)

var ErrRequestInFlight = errors.New("a payment request is already in flight")

// Selector drives one handoff from method choice to a gateway URL. Selecting
// a method calls the gateway; a failure leaves the method selected with the
// error recorded so the caller may submit again.
type Selector struct {
	gateways  Registry
	returnURL string
	now       func() time.Time

	mu       sync.Mutex
	state    State
	method   Method
	inFlight bool
	lastErr  error
	url      string
}

func NewSelector(gateways Registry, returnURL string) *Selector {
	return &Selector{
		gateways:  gateways,
		returnURL: returnURL,
		now:       time.Now,
		state:     StateUnselected,
	}
}

// WithClock replaces the clock used for the expiry check.
func (s *Selector) WithClock(now func() time.Time) *Selector {
	s.now = now
	return s
}

// Select validates the handoff and asks the chosen gateway for a checkout URL.
// No request is sent when the handoff is incomplete or its hold has expired.
func (s *Selector) Select(ctx context.Context, h Handoff, m Method) (string, error) {
	if err := h.Validate(); err != nil {
		return "", err
	}
	if h.Expired(s.now()) {
		return "", fmt.Errorf("%w: at %s", ErrReservationExpired, h.ExpiresAt.Format(time.RFC3339))
	}
	gw, err := s.gateways.Lookup(m)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return "", ErrRequestInFlight
	}
	s.inFlight = true
	s.method = m
	s.state = StateSelected
	s.lastErr = nil
	s.mu.Unlock()

	url, err := gw.CreateCheckoutURL(ctx, OrderFor(h, s.returnURL))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	if err != nil {
		s.lastErr = err
		return "", err
	}
	s.state = StateAwaitingRedirect
	s.url = url
	return url, nil
}

// Snapshot is the selector's state for display.
type Snapshot struct {
	State  State
	Method Method
	URL    string
	Err    error
}

func (s *Selector) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{State: s.state, Method: s.method, URL: s.url, Err: s.lastErr}
}
