// Package events carries booking domain events to RabbitMQ and reads the
// queue service's change notifications back.
package events

import "time"

// Routing keys (queue names on the default exchange).
const (
	TopicReserved         = "booking.reserved"
	TopicPaymentRequested = "booking.payment_requested"
	TopicPaymentResolved  = "booking.payment_resolved"
	TopicQueueChanged     = "queue.changed"
)

// Reserved is published once a hold has been placed upstream.
type Reserved struct {
	ReservationID string    `json:"reservation_id"`
	OwnerID       string    `json:"owner_id"`
	PatientID     string    `json:"patient_id"`
	DentistID     string    `json:"dentist_id"`
	Date          string    `json:"date"`
	SlotIDs       []string  `json:"slot_ids"`
	Amount        int64     `json:"amount"`
	ExpiresAt     time.Time `json:"expires_at"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// PaymentRequested is published when a gateway returned a checkout URL.
type PaymentRequested struct {
	ReservationID string    `json:"reservation_id"`
	Gateway       string    `json:"gateway"`
	Amount        int64     `json:"amount"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// PaymentResolved is published after a gateway callback was classified.
type PaymentResolved struct {
	ReservationID string    `json:"reservation_id"`
	State         string    `json:"state"`
	Audience      string    `json:"audience"`
	Message       string    `json:"message,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// QueueChanged is what the queue service emits when one entity changes.
type QueueChanged struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
}
