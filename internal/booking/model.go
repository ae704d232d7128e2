package booking

import (
	"time"

	"github.com/hackgods/clinic-booking-gateway/internal/draft"
	"github.com/hackgods/clinic-booking-gateway/internal/reservation"
)

type CheckoutStatus string

const (
	StatusReserved   CheckoutStatus = "reserved"
	StatusRedirected CheckoutStatus = "redirected"
	StatusPaid       CheckoutStatus = "paid"
	StatusFailed     CheckoutStatus = "failed"
	StatusErrored    CheckoutStatus = "errored"
	StatusExpired    CheckoutStatus = "expired"
	StatusAbandoned  CheckoutStatus = "abandoned"
)

// Open reports whether the checkout can still be paid.
func (s CheckoutStatus) Open() bool {
	return s == StatusReserved || s == StatusRedirected
}

var openStatuses = []CheckoutStatus{StatusReserved, StatusRedirected}

// GatewayDirect marks a checkout whose URL came with the reservation itself.
const GatewayDirect = "direct"

// Checkout is the ledger row for one reservation on its way to a gateway.
type Checkout struct {
	ReservationID  string
	OwnerID        string
	PatientID      string
	Amount         int64
	Gateway        string
	RedirectURL    string
	Status         CheckoutStatus
	OutcomeMessage string
	ExpiresAt      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	ReservationID *string
	Payload       []byte
	CreatedAt     time.Time
}

// Next tells the caller where the browser goes after a reservation.
type Next string

const (
	NextSelectPayment Next = "select_payment"
	NextRedirect      Next = "redirect"
)

type ConfirmInput struct {
	// PatientID lets staff book on behalf of a patient.
	PatientID string
	Notes     string
}

type ConfirmResult struct {
	Reservation reservation.Reservation
	Next        Next
	RedirectURL string
}

// StepResult is a step the caller may render, with the draft it reads from.
type StepResult struct {
	Step  draft.Step
	Draft draft.Draft
}
