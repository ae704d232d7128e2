// Package outcome classifies the query string a payment gateway sends the
// browser back with. It holds no state: the same parameters always resolve
// to the same result.
package outcome

import (
	"net/url"
	"strings"

	"github.com/hackgods/clinic-booking-gateway/internal/session"
)

// State is the terminal classification of a gateway callback.
type State string

const (
	StateSuccess State = "success"
	StateFailed  State = "failed"
	StateError   State = "error"
	StateUnknown State = "unknown"
)

// Action is the single call-to-action shown with an outcome.
type Action struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

type Outcome struct {
	State    State  `json:"state"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Action   Action `json:"action"`
	OrderID  string `json:"order_id,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Audience string `json:"audience"`
}

var statusWords = map[string]State{
	"success":    StateSuccess,
	"paid":       StateSuccess,
	"succeeded":  StateSuccess,
	"completed":  StateSuccess,
	"failed":     StateFailed,
	"fail":       StateFailed,
	"cancelled":  StateFailed,
	"canceled":   StateFailed,
	"declined":   StateFailed,
	"error":      StateError,
	"pending":    StateUnknown,
	"processing": StateUnknown,
}

type wording struct {
	title   string
	message string
}

var texts = map[session.Audience]map[State]wording{
	session.AudiencePatient: {
		StateSuccess: {"Payment successful", "Your appointment is booked. A confirmation has been sent to you."},
		StateFailed:  {"Payment failed", "The payment was not completed and your slot was not booked. You can start the booking again."},
		StateError:   {"Something went wrong", "The payment could not be processed. Please try again later."},
		StateUnknown: {"Payment status unknown", "We could not confirm your payment. Please contact the clinic before booking again."},
	},
	session.AudienceStaff: {
		StateSuccess: {"Payment recorded", "The invoice has been paid."},
		StateFailed:  {"Payment failed", "The payment for this invoice was not completed."},
		StateError:   {"Something went wrong", "The payment could not be processed."},
		StateUnknown: {"Payment status unknown", "The gateway did not report a result. Check the transaction before retrying."},
	},
}

var actions = map[session.Audience]map[State]Action{
	session.AudiencePatient: {
		StateSuccess: {Label: "View appointments", Path: "/appointments"},
		StateFailed:  {Label: "Retry booking", Path: "/booking/service"},
		StateError:   {Label: "Return home", Path: "/"},
		StateUnknown: {Label: "Contact support", Path: "/support"},
	},
	session.AudienceStaff: {
		StateSuccess: {Label: "Back to invoices", Path: "/invoices"},
		StateFailed:  {Label: "Back to invoices", Path: "/invoices"},
		StateError:   {Label: "Return to dashboard", Path: "/dashboard"},
		StateUnknown: {Label: "Contact support", Path: "/support"},
	},
}

// Resolve maps callback parameters to an outcome for the given audience.
// A missing or unrecognised status is unknown, never success or failed.
func Resolve(params url.Values, audience session.Audience) Outcome {
	if _, ok := actions[audience]; !ok {
		audience = session.AudiencePatient
	}
	state := classify(params)
	c := texts[audience][state]
	return Outcome{
		State:    state,
		Title:    c.title,
		Message:  c.message,
		Action:   actions[audience][state],
		OrderID:  OrderID(params),
		Detail:   strings.TrimSpace(params.Get("message")),
		Audience: audience.String(),
	}
}

// OrderID returns the reservation id the gateway echoed back, if any.
func OrderID(params url.Values) string {
	for _, k := range []string{"orderId", "vnp_TxnRef", "order_id"} {
		if v := strings.TrimSpace(params.Get(k)); v != "" {
			return v
		}
	}
	return ""
}

func classify(params url.Values) State {
	if s, ok := statusWords[strings.ToLower(strings.TrimSpace(params.Get("status")))]; ok {
		return s
	}
	if code := strings.TrimSpace(params.Get("vnp_ResponseCode")); code != "" {
		switch code {
		case "00":
			return StateSuccess
		case "99":
			return StateError
		default:
			return StateFailed
		}
	}
	switch strings.ToLower(strings.TrimSpace(params.Get("redirect_status"))) {
	case "succeeded":
		return StateSuccess
	case "failed", "canceled":
		return StateFailed
	}
	return StateUnknown
}
