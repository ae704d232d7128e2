package api

import (
	"encoding/json"
	"time"

	"github.com/hackgods/clinic-booking-gateway/internal/draft"
	"github.com/hackgods/clinic-booking-gateway/internal/payment"
)

type SetFieldRequest struct {
	Value json.RawMessage `json:"value"`
}

type DraftResponse struct {
	ServiceID string    `json:"service_id,omitempty"`
	AddonID   string    `json:"addon_id,omitempty"`
	DentistID string    `json:"dentist_id,omitempty"`
	Date      string    `json:"date,omitempty"`
	SlotIDs   []string  `json:"slot_ids,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	Complete  bool      `json:"complete"`
}

func toDraftResponse(d draft.Draft) DraftResponse {
	return DraftResponse{
		ServiceID: d.ServiceID,
		AddonID:   d.AddonID,
		DentistID: d.DentistID,
		Date:      d.Date,
		SlotIDs:   d.SlotIDs,
		UpdatedAt: d.UpdatedAt,
		Complete:  d.IsComplete(),
	}
}

type StepResponse struct {
	Step  draft.Step    `json:"step"`
	Draft DraftResponse `json:"draft"`
}

type ConfirmRequest struct {
	PatientID string `json:"patient_id,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

type ReservationResponse struct {
	ID          string    `json:"id"`
	Amount      int64     `json:"amount"`
	RedirectURL string    `json:"redirect_url,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type ConfirmResponse struct {
	Reservation ReservationResponse `json:"reservation"`
	Next        string              `json:"next"`
	RedirectURL string              `json:"redirect_url,omitempty"`
}

type PaymentRequest struct {
	Gateway     string          `json:"gateway"`
	Reservation payment.Handoff `json:"reservation"`
}

type PaymentResponse struct {
	RedirectURL string `json:"redirect_url"`
}

type ErrorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	RedirectTo string `json:"redirect_to,omitempty"`
}
