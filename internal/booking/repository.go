package booking

import (
	"context"
	"errors"
	"time"
)

var ErrCheckoutNotFound = errors.New("checkout not found")

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// Upserts on reservation id: an upstream that returns the same hold twice
	// refreshes the row instead of failing.
	CreateCheckout(ctx context.Context, c Checkout) (*Checkout, error)
	GetCheckout(ctx context.Context, reservationID string) (*Checkout, error)

	// Status transitions only apply when the current status is one of from.
	MarkRedirected(ctx context.Context, reservationID, gateway, redirectURL string) (*Checkout, error)
	UpdateCheckoutStatus(ctx context.Context, reservationID string, from []CheckoutStatus, to CheckoutStatus, message string) (*Checkout, error)
	AbandonOpenCheckouts(ctx context.Context, ownerID, message string) ([]Checkout, error)

	// Expiry worker
	FindExpiredCheckouts(ctx context.Context, now time.Time) ([]Checkout, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
