package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-booking-gateway/internal/booking"
	"github.com/hackgods/clinic-booking-gateway/internal/draft"
	"github.com/hackgods/clinic-booking-gateway/internal/outcome"
	"github.com/hackgods/clinic-booking-gateway/internal/payment"
	"github.com/hackgods/clinic-booking-gateway/internal/reservation"
	"github.com/hackgods/clinic-booking-gateway/internal/session"
)

// BookingService is what the HTTP layer needs from the flow controller.
type BookingService interface {
	Start(ctx context.Context, owner string) error
	Draft(ctx context.Context, owner string) (draft.Draft, error)
	SetField(ctx context.Context, owner string, field draft.Field, value json.RawMessage) (draft.Draft, error)
	Abandon(ctx context.Context, owner string) error
	Enter(ctx context.Context, owner string, step draft.Step) (*booking.StepResult, error)
	Confirm(ctx context.Context, p session.Profile, in booking.ConfirmInput) (*booking.ConfirmResult, error)
	SelectPayment(ctx context.Context, p session.Profile, in booking.SelectInput) (string, error)
	ResolveOutcome(ctx context.Context, caller *session.Profile, params url.Values) outcome.Outcome
	RedirectURL(ctx context.Context, reservationID string) (string, error)
}

func startBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := mustProfile(r)
		if err := svc.Start(r.Context(), p.ID); err != nil {
			handleBookingError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func getDraftHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := svc.Draft(r.Context(), mustProfile(r).ID)
		if err != nil {
			handleBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDraftResponse(d))
	}
}

func setDraftFieldHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		field, err := draft.ParseField(chi.URLParam(r, "field"))
		if err != nil {
			writeError(w, http.StatusNotFound, "unknown_field", err.Error())
			return
		}

		var req SetFieldRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if len(req.Value) == 0 {
			writeError(w, http.StatusUnprocessableEntity, "invalid_value", "value is required")
			return
		}

		d, err := svc.SetField(r.Context(), mustProfile(r).ID, field, req.Value)
		if err != nil {
			handleBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDraftResponse(d))
	}
}

func abandonDraftHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Abandon(r.Context(), mustProfile(r).ID); err != nil {
			handleBookingError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func enterStepHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		step, err := draft.ParseStep(chi.URLParam(r, "step"))
		if err != nil {
			writeError(w, http.StatusNotFound, "unknown_step", err.Error())
			return
		}

		res, err := svc.Enter(r.Context(), mustProfile(r).ID, step)
		if err != nil {
			handleBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, StepResponse{Step: res.Step, Draft: toDraftResponse(res.Draft)})
	}
}

func confirmBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ConfirmRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
				return
			}
		}

		res, err := svc.Confirm(r.Context(), mustProfile(r), booking.ConfirmInput{
			PatientID: req.PatientID,
			Notes:     req.Notes,
		})
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, ConfirmResponse{
			Reservation: ReservationResponse{
				ID:          res.Reservation.ID,
				Amount:      res.Reservation.Amount,
				RedirectURL: res.Reservation.RedirectURL,
				ExpiresAt:   res.Reservation.ExpiresAt,
			},
			Next:        string(res.Next),
			RedirectURL: res.RedirectURL,
		})
	}
}

func selectPaymentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		u, err := svc.SelectPayment(r.Context(), mustProfile(r), booking.SelectInput{
			Gateway:     req.Gateway,
			Reservation: req.Reservation,
		})
		if err != nil {
			handleBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, PaymentResponse{RedirectURL: u})
	}
}

// paymentResultHandler serves the gateway callback. Staff-initiated
// payments come back through the same URL, so the caller's session, when
// there is one, picks the audience.
func paymentResultHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var caller *session.Profile
		if p, ok := session.FromContext(r.Context()); ok {
			caller = &p
		}
		writeJSON(w, http.StatusOK, svc.ResolveOutcome(r.Context(), caller, r.URL.Query()))
	}
}

func payRedirectHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := svc.RedirectURL(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleBookingError(w, err)
			return
		}
		http.Redirect(w, r, u, http.StatusFound)
	}
}

func mustProfile(r *http.Request) session.Profile {
	p, _ := session.FromContext(r.Context())
	return p
}

func handleBookingError(w http.ResponseWriter, err error) {
	var guardErr *booking.GuardError
	if errors.As(err, &guardErr) {
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:      "step_prerequisite_missing",
			Details:    err.Error(),
			RedirectTo: string(guardErr.Redirect),
		})
		return
	}

	switch {
	case errors.Is(err, draft.ErrUnknownField):
		writeError(w, http.StatusNotFound, "unknown_field", err.Error())
	case errors.Is(err, draft.ErrInvalidValue):
		writeError(w, http.StatusUnprocessableEntity, "invalid_value", err.Error())
	case errors.Is(err, booking.ErrSubmissionInFlight):
		writeError(w, http.StatusConflict, "submission_in_flight", err.Error())
	case errors.Is(err, booking.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, reservation.ErrRejected):
		writeError(w, http.StatusBadGateway, "reservation_rejected", err.Error())
	case errors.Is(err, reservation.ErrUnavailable):
		writeError(w, http.StatusBadGateway, "reservation_unavailable", err.Error())
	case errors.Is(err, reservation.ErrAmbiguous):
		writeError(w, http.StatusGatewayTimeout, "reservation_outcome_unknown",
			"the reservation may or may not have been placed; check your appointments before retrying")
	case errors.Is(err, payment.ErrMissingReservationID),
		errors.Is(err, payment.ErrMissingAmount):
		writeError(w, http.StatusUnprocessableEntity, "reservation_incomplete", err.Error())
	case errors.Is(err, payment.ErrUnknownGateway):
		writeError(w, http.StatusUnprocessableEntity, "unknown_gateway", err.Error())
	case errors.Is(err, payment.ErrGatewayNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "gateway_not_configured", err.Error())
	case errors.Is(err, booking.ErrReservationMismatch):
		writeError(w, http.StatusUnprocessableEntity, "reservation_mismatch", err.Error())
	case errors.Is(err, payment.ErrReservationExpired):
		writeError(w, http.StatusGone, "reservation_expired", err.Error())
	case errors.Is(err, payment.ErrGatewayFailed),
		errors.Is(err, payment.ErrCheckoutURL):
		writeError(w, http.StatusBadGateway, "payment_gateway_failed", err.Error())
	case errors.Is(err, booking.ErrCheckoutNotFound):
		writeError(w, http.StatusNotFound, "checkout_not_found", err.Error())
	case errors.Is(err, booking.ErrCheckoutClosed):
		writeError(w, http.StatusConflict, "checkout_closed", err.Error())
	case errors.Is(err, booking.ErrNoRedirect):
		writeError(w, http.StatusNotFound, "payment_link_missing", err.Error())
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusRequestTimeout, "request_cancelled", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
