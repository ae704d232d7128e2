package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrUnknownGateway       = errors.New("unknown payment gateway")
	ErrGatewayNotConfigured = errors.New("payment gateway not configured")
	ErrMissingReservationID = errors.New("reservation id is missing")
	ErrMissingAmount        = errors.New("reservation amount is missing")
	ErrReservationExpired   = errors.New("reservation hold has expired")
	ErrCheckoutURL          = errors.New("gateway did not return a checkout url")
	ErrGatewayFailed        = errors.New("payment gateway request failed")
)

// Method is a hosted-checkout provider the browser is sent to.
type Method string

const (
	MethodVNPay  Method = "vnpay"
	MethodStripe Method = "stripe"
)

func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodVNPay, MethodStripe:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGateway, s)
}

// Handoff is the reservation as it travels from creation to the payment step.
type Handoff struct {
	ReservationID string    `json:"id"`
	Amount        int64     `json:"amount"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
}

// Validate fails before any network call when the handoff is incomplete.
func (h Handoff) Validate() error {
	if strings.TrimSpace(h.ReservationID) == "" {
		return ErrMissingReservationID
	}
	if h.Amount <= 0 {
		return fmt.Errorf("%w: got %d", ErrMissingAmount, h.Amount)
	}
	return nil
}

// Expired reports whether the hold window has elapsed at now. A zero expiry
// means the window is unknown and is treated as open.
func (h Handoff) Expired(now time.Time) bool {
	return !h.ExpiresAt.IsZero() && !now.Before(h.ExpiresAt)
}

// Order is what a gateway needs to build a checkout page.
type Order struct {
	ID        string
	Amount    int64
	Info      string
	ReturnURL string
}

func OrderFor(h Handoff, returnURL string) Order {
	return Order{
		ID:        h.ReservationID,
		Amount:    h.Amount,
		Info:      "Thanh toan lich hen " + h.ReservationID,
		ReturnURL: returnURL,
	}
}

// Gateway obtains a hosted checkout URL for an order.
type Gateway interface {
	CreateCheckoutURL(ctx context.Context, order Order) (string, error)
}

// Registry holds one gateway per method. There is no fallback between them.
type Registry map[Method]Gateway

func (r Registry) Lookup(m Method) (Gateway, error) {
	g, ok := r[m]
	if !ok || g == nil {
		return nil, fmt.Errorf("%w: %s", ErrGatewayNotConfigured, m)
	}
	return g, nil
}
