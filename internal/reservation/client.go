package reservation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("clinic.booking.reservation")

var (
	// ErrRejected means the appointment service answered and refused the hold.
	ErrRejected = errors.New("reservation rejected")
	// ErrUnavailable means the request never reached a decision point upstream.
	ErrUnavailable = errors.New("reservation service unavailable")
	// ErrAmbiguous means the request may have been applied; the caller must
	// decide whether to retry.
	ErrAmbiguous = errors.New("reservation outcome unknown")
)

// Request is the assembled draft plus the patient it is booked for.
type Request struct {
	PatientID string   `json:"patientId"`
	ServiceID string   `json:"serviceId"`
	AddonID   string   `json:"addonId,omitempty"`
	DentistID string   `json:"dentistId"`
	SlotIDs   []string `json:"slotIds"`
	Date      string   `json:"date"`
	Notes     string   `json:"notes,omitempty"`
}

// Reservation is the transient copy of the server-held slot.
type Reservation struct {
	ID          string    `json:"id"`
	Amount      int64     `json:"amount"`
	RedirectURL string    `json:"redirect_url,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Requester places reservations. The flow controller depends on this, not on Client.
type Requester interface {
	Reserve(ctx context.Context, req Request) (*Reservation, error)
}

// Client talks to the appointment service. It never retries on its own.
type Client struct {
	baseURL    string
	httpClient *http.Client
	holdTTL    time.Duration
	now        func() time.Time
}

func NewClient(baseURL string, timeout, holdTTL time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		holdTTL:    holdTTL,
		now:        time.Now,
	}
}

type reserveResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		ReservationID string      `json:"reservationId"`
		OrderID       string      `json:"orderId"`
		Amount        json.Number `json:"amount"`
		PaymentURL    string      `json:"paymentUrl"`
		ExpiresAt     *time.Time  `json:"expiresAt"`
	} `json:"data"`
}

func (c *Client) Reserve(ctx context.Context, req Request) (*Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservation.reserve", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.patient_id", req.PatientID),
		attribute.String("booking.dentist_id", req.DentistID),
		attribute.Int("booking.slot_count", len(req.SlotIDs)),
	)

	res, err := c.reserve(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("booking.reservation_id", res.ID))
	return res, nil
}

func (c *Client) reserve(ctx context.Context, req Request) (*Reservation, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode reservation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/appointments/reserve", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build reservation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	issuedAt := c.now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrAmbiguous, err)
	}

	var parsed reserveResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode >= http.StatusMultipleChoices {
		msg := parsed.Message
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		if resp.StatusCode == http.StatusGatewayTimeout {
			return nil, fmt.Errorf("%w: upstream status %d", ErrAmbiguous, resp.StatusCode)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: undecodable response: %v", ErrRejected, decodeErr)
	}
	if !parsed.Success {
		msg := parsed.Message
		if msg == "" {
			msg = "appointment service declined the reservation"
		}
		return nil, fmt.Errorf("%w: %s", ErrRejected, msg)
	}

	id := parsed.Data.ReservationID
	if id == "" {
		id = parsed.Data.OrderID
	}
	var amount int64
	if parsed.Data.Amount != "" {
		if amount, err = parsed.Data.Amount.Int64(); err != nil {
			f, ferr := parsed.Data.Amount.Float64()
			if ferr != nil {
				return nil, fmt.Errorf("%w: amount %q is not a number", ErrRejected, parsed.Data.Amount)
			}
			// the quoted amount is forwarded to the gateway as is
			if f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
				return nil, fmt.Errorf("%w: amount %q is not a whole number", ErrRejected, parsed.Data.Amount)
			}
			amount = int64(f)
		}
	}

	res := &Reservation{
		ID:          id,
		Amount:      amount,
		RedirectURL: strings.TrimSpace(parsed.Data.PaymentURL),
		ExpiresAt:   issuedAt.Add(c.holdTTL).UTC(),
	}
	if parsed.Data.ExpiresAt != nil && !parsed.Data.ExpiresAt.IsZero() {
		res.ExpiresAt = parsed.Data.ExpiresAt.UTC()
	}
	return res, nil
}

// classifyTransportError separates "never sent" from "sent, no answer".
func classifyTransportError(err error) error {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: request cancelled: %v", ErrAmbiguous, err)
	}
	// timeouts and resets after the request left: it may have been applied
	return fmt.Errorf("%w: %v", ErrAmbiguous, err)
}
