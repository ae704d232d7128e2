package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hackgods/clinic-booking-gateway/internal/config"
	"github.com/hackgods/clinic-booking-gateway/internal/draft"
	"github.com/hackgods/clinic-booking-gateway/internal/events"
	"github.com/hackgods/clinic-booking-gateway/internal/metrics"
	"github.com/hackgods/clinic-booking-gateway/internal/outcome"
	"github.com/hackgods/clinic-booking-gateway/internal/payment"
	redisclient "github.com/hackgods/clinic-booking-gateway/internal/redis"
	"github.com/hackgods/clinic-booking-gateway/internal/reservation"
	"github.com/hackgods/clinic-booking-gateway/internal/session"
	"github.com/hackgods/clinic-booking-gateway/pkg/logging"
)

const (
	EventCheckoutReserved   = "CHECKOUT_RESERVED"
	EventCheckoutRedirected = "CHECKOUT_REDIRECTED"
	EventCheckoutResolved   = "CHECKOUT_RESOLVED"
	EventCheckoutExpired    = "CHECKOUT_EXPIRED"
	EventCheckoutAbandoned  = "CHECKOUT_ABANDONED"
	EventCheckoutLatePaid   = "CHECKOUT_LATE_PAYMENT"
)

var (
	ErrDraftIncomplete     = errors.New("booking draft is incomplete")
	ErrSubmissionInFlight  = errors.New("a booking request is already in flight, please wait")
	ErrReservationMismatch = errors.New("reservation does not match the recorded checkout")
	ErrCheckoutClosed      = errors.New("checkout is no longer open")
	ErrNoRedirect          = errors.New("checkout has no payment link yet")
	ErrForbidden           = errors.New("not allowed to act on this booking")
)

// GuardError carries the step the caller must go back to.
type GuardError struct {
	Step     draft.Step
	Redirect draft.Step
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("step %s needs step %s first", e.Step, e.Redirect)
}

func (e *GuardError) Unwrap() error { return ErrDraftIncomplete }

// Deps are the collaborators the flow controller threads the booking through.
type Deps struct {
	Drafts    draft.Store
	Reserver  reservation.Requester
	Gateways  payment.Registry
	Repo      Repository
	Locker    redisclient.Locker
	Publisher events.Publisher
	Metrics   *metrics.BookingMetrics
	Logger    *logging.Logger
}

// Service is the single owner of the booking sequence: draft, reservation,
// payment handoff, and outcome.
type Service struct {
	drafts    draft.Store
	reserver  reservation.Requester
	gateways  payment.Registry
	repo      Repository
	locker    redisclient.Locker
	publisher events.Publisher
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
	cfg       config.Config
	now       func() time.Time
}

func NewService(deps Deps, cfg config.Config) *Service {
	if deps.Publisher == nil {
		deps.Publisher = events.NoopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	return &Service{
		drafts:    deps.Drafts,
		reserver:  deps.Reserver,
		gateways:  deps.Gateways,
		repo:      deps.Repo,
		locker:    deps.Locker,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Start begins a fresh booking. Whatever an earlier abandoned attempt left
// behind is discarded.
func (s *Service) Start(ctx context.Context, owner string) error {
	return s.drafts.Clear(ctx, owner)
}

func (s *Service) Draft(ctx context.Context, owner string) (draft.Draft, error) {
	return s.drafts.Get(ctx, owner)
}

func (s *Service) SetField(ctx context.Context, owner string, field draft.Field, value json.RawMessage) (draft.Draft, error) {
	return s.drafts.Set(ctx, owner, field, value)
}

// Abandon drops the draft and closes every checkout the owner still had open.
func (s *Service) Abandon(ctx context.Context, owner string) error {
	if err := s.drafts.Clear(ctx, owner); err != nil {
		return err
	}

	closed, err := s.repo.AbandonOpenCheckouts(ctx, owner, "booking abandoned")
	if err != nil {
		return fmt.Errorf("abandon checkouts: %w", err)
	}
	for _, c := range closed {
		s.logEvent(ctx, c.ReservationID, EventCheckoutAbandoned, map[string]any{
			"owner_id": owner,
		})
	}
	return nil
}

// Enter checks that a step's prerequisites are in the draft.
func (s *Service) Enter(ctx context.Context, owner string, step draft.Step) (*StepResult, error) {
	d, err := s.drafts.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	if redirect, ok := draft.Guard(d, step); !ok {
		return nil, &GuardError{Step: step, Redirect: redirect}
	}
	return &StepResult{Step: step, Draft: d}, nil
}

// Confirm places the hold for the caller's complete draft. It never retries:
// an ambiguous upstream answer goes back to the caller as is.
func (s *Service) Confirm(ctx context.Context, p session.Profile, in ConfirmInput) (*ConfirmResult, error) {
	d, err := s.drafts.Get(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if redirect, ok := draft.Guard(d, draft.StepConfirm); !ok {
		return nil, &GuardError{Step: draft.StepConfirm, Redirect: redirect}
	}

	patientID := p.ID
	if in.PatientID = strings.TrimSpace(in.PatientID); in.PatientID != "" && in.PatientID != p.ID {
		if !p.IsStaff() {
			return nil, fmt.Errorf("%w: only staff may book for another patient", ErrForbidden)
		}
		patientID = in.PatientID
	}

	req := reservation.Request{
		PatientID: patientID,
		ServiceID: d.ServiceID,
		AddonID:   d.AddonID,
		DentistID: d.DentistID,
		SlotIDs:   d.SlotIDs,
		Date:      d.Date,
		Notes:     strings.TrimSpace(in.Notes),
	}

	var result *ConfirmResult

	err = s.locker.WithOwnerLock(ctx, p.ID, func(lockCtx context.Context) error {
		started := s.now()
		res, err := s.reserver.Reserve(lockCtx, req)
		s.metrics.ObserveUpstreamLatency("reserve", s.now().Sub(started).Seconds())
		if err != nil {
			s.metrics.ObserveReservation(reservationResult(err))
			return err
		}
		s.metrics.ObserveReservation("ok")

		result = &ConfirmResult{Reservation: *res, Next: NextSelectPayment}
		if res.RedirectURL != "" {
			result.Next = NextRedirect
			result.RedirectURL = res.RedirectURL
		}

		if res.ID == "" {
			// nothing to key a ledger row on; the payment step rejects it
			s.logger.Warn("reservation returned without an id", "owner_id", p.ID)
			return nil
		}
		if err := s.recordReservation(lockCtx, p.ID, patientID, req, res); err != nil {
			// the hold exists upstream; failing here would invite a second one
			s.logger.Error("failed to record reservation", "reservation_id", res.ID, "owner_id", p.ID, "error", err)
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSubmissionInFlight
		}
		return nil, err
	}

	return result, nil
}

func (s *Service) recordReservation(ctx context.Context, owner, patientID string, req reservation.Request, res *reservation.Reservation) error {
	c := Checkout{
		ReservationID: res.ID,
		OwnerID:       owner,
		PatientID:     patientID,
		Amount:        res.Amount,
		Status:        StatusReserved,
		ExpiresAt:     res.ExpiresAt,
	}
	if res.RedirectURL != "" {
		c.Status = StatusRedirected
		c.Gateway = GatewayDirect
		c.RedirectURL = res.RedirectURL
	}
	if _, err := s.repo.CreateCheckout(ctx, c); err != nil {
		return fmt.Errorf("record checkout: %w", err)
	}

	s.logEvent(ctx, res.ID, EventCheckoutReserved, map[string]any{
		"owner_id":   owner,
		"patient_id": patientID,
		"amount":     res.Amount,
		"expires_at": res.ExpiresAt,
		"direct":     res.RedirectURL != "",
	})
	s.publish(ctx, events.TopicReserved, events.Reserved{
		ReservationID: res.ID,
		OwnerID:       owner,
		PatientID:     patientID,
		DentistID:     req.DentistID,
		Date:          req.Date,
		SlotIDs:       req.SlotIDs,
		Amount:        res.Amount,
		ExpiresAt:     res.ExpiresAt,
		OccurredAt:    s.now().UTC(),
	})
	return nil
}

type SelectInput struct {
	Gateway     string
	Reservation payment.Handoff
}

// SelectPayment turns a reservation into a gateway checkout URL. Every
// precondition is checked before the gateway is called.
func (s *Service) SelectPayment(ctx context.Context, p session.Profile, in SelectInput) (string, error) {
	h := in.Reservation
	h.ReservationID = strings.TrimSpace(h.ReservationID)
	if err := h.Validate(); err != nil {
		return "", err
	}
	method, err := payment.ParseMethod(in.Gateway)
	if err != nil {
		return "", err
	}

	c, err := s.repo.GetCheckout(ctx, h.ReservationID)
	if errors.Is(err, ErrCheckoutNotFound) {
		c, err = s.recoverCheckout(ctx, p, h)
	}
	if err != nil {
		return "", fmt.Errorf("load checkout: %w", err)
	}
	if c.OwnerID != p.ID && !p.IsStaff() {
		return "", ErrForbidden
	}
	if c.Amount != h.Amount {
		return "", fmt.Errorf("%w: amount %d, recorded %d", ErrReservationMismatch, h.Amount, c.Amount)
	}
	if !c.Status.Open() {
		return "", fmt.Errorf("%w: %s", ErrCheckoutClosed, c.Status)
	}
	if h.ExpiresAt.IsZero() || c.ExpiresAt.Before(h.ExpiresAt) {
		h.ExpiresAt = c.ExpiresAt
	}
	if h.Expired(s.now()) {
		return "", fmt.Errorf("%w: at %s", payment.ErrReservationExpired, h.ExpiresAt.Format(time.RFC3339))
	}

	var checkoutURL string

	err = s.locker.WithOwnerLock(ctx, p.ID, func(lockCtx context.Context) error {
		sel := payment.NewSelector(s.gateways, s.cfg.PaymentReturnURL).WithClock(s.now)
		started := s.now()
		u, err := sel.Select(lockCtx, h, method)
		s.metrics.ObserveUpstreamLatency("checkout_url", s.now().Sub(started).Seconds())
		if err != nil {
			s.metrics.ObservePaymentRequest(string(method), "error")
			snap := sel.Snapshot()
			s.logger.Warn("payment url request failed",
				"reservation_id", h.ReservationID,
				"gateway", string(snap.Method),
				"state", string(snap.State),
				"error", snap.Err,
			)
			return err
		}
		s.metrics.ObservePaymentRequest(string(method), "ok")
		checkoutURL = u

		if _, err := s.repo.MarkRedirected(lockCtx, h.ReservationID, string(method), u); err != nil {
			// the URL is still valid; the ledger catches up on the callback
			s.logger.Error("failed to record checkout url", "reservation_id", h.ReservationID, "error", err)
		}
		s.logEvent(lockCtx, h.ReservationID, EventCheckoutRedirected, map[string]any{
			"gateway": string(method),
		})
		s.publish(lockCtx, events.TopicPaymentRequested, events.PaymentRequested{
			ReservationID: h.ReservationID,
			Gateway:       string(method),
			Amount:        h.Amount,
			OccurredAt:    s.now().UTC(),
		})
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return "", ErrSubmissionInFlight
		}
		return "", err
	}

	return checkoutURL, nil
}

// recoverCheckout writes the ledger row a failed confirm could not. The
// reservation itself was placed, so the handoff is taken at its word.
func (s *Service) recoverCheckout(ctx context.Context, p session.Profile, h payment.Handoff) (*Checkout, error) {
	if h.ExpiresAt.IsZero() {
		return nil, ErrCheckoutNotFound
	}
	c := Checkout{
		ReservationID: h.ReservationID,
		OwnerID:       p.ID,
		PatientID:     p.ID,
		Amount:        h.Amount,
		Status:        StatusReserved,
		ExpiresAt:     h.ExpiresAt,
	}
	created, err := s.repo.CreateCheckout(ctx, c)
	if err != nil {
		return nil, err
	}
	s.logger.Warn("recovered missing checkout from handoff", "reservation_id", h.ReservationID, "owner_id", p.ID)
	s.logEvent(ctx, h.ReservationID, EventCheckoutReserved, map[string]any{
		"owner_id":  p.ID,
		"amount":    h.Amount,
		"recovered": true,
	})
	return created, nil
}

var outcomeStatus = map[outcome.State]CheckoutStatus{
	outcome.StateSuccess: StatusPaid,
	outcome.StateFailed:  StatusFailed,
	outcome.StateError:   StatusErrored,
}

// ResolveOutcome classifies a gateway callback and settles the ledger. The
// classification never depends on the ledger. The ledger only moves for a
// signed callback or for the checkout's owner or staff; ledger trouble is
// logged only.
func (s *Service) ResolveOutcome(ctx context.Context, caller *session.Profile, params url.Values) outcome.Outcome {
	audience := session.AudiencePatient
	if caller != nil {
		audience = caller.Audience()
	}
	o := outcome.Resolve(params, audience)
	s.metrics.ObserveOutcome(string(o.State), o.Audience)

	to, settles := outcomeStatus[o.State]
	if o.OrderID == "" || !settles {
		return o
	}

	c, err := s.repo.GetCheckout(ctx, o.OrderID)
	if err != nil {
		if errors.Is(err, ErrCheckoutNotFound) {
			s.logger.Debug("callback for unknown checkout", "reservation_id", o.OrderID, "state", o.State)
		} else {
			s.logger.Error("failed to load checkout for callback", "reservation_id", o.OrderID, "error", err)
		}
		return o
	}
	if !s.trustedCallback(caller, c, params) {
		s.logger.Warn("unverified payment callback ignored", "reservation_id", c.ReservationID, "state", o.State)
		return o
	}

	from := openStatuses
	late := to == StatusPaid && (c.Status == StatusExpired || c.Status == StatusAbandoned)
	if late {
		// the user finished paying after the hold was closed here
		from = []CheckoutStatus{c.Status}
		s.logger.Warn("payment arrived for a closed checkout", "reservation_id", c.ReservationID, "status", c.Status)
	}

	settled, err := s.repo.UpdateCheckoutStatus(ctx, c.ReservationID, from, to, o.Detail)
	if err != nil {
		if errors.Is(err, ErrCheckoutNotFound) {
			s.logger.Debug("callback for settled checkout", "reservation_id", c.ReservationID, "state", o.State)
		} else {
			s.logger.Error("failed to settle checkout", "reservation_id", c.ReservationID, "error", err)
		}
		return o
	}

	if to == StatusPaid {
		if err := s.drafts.Clear(ctx, settled.OwnerID); err != nil {
			s.logger.Warn("failed to clear completed draft", "owner_id", settled.OwnerID, "error", err)
		}
	}
	eventType := EventCheckoutResolved
	if late {
		eventType = EventCheckoutLatePaid
	}
	s.logEvent(ctx, settled.ReservationID, eventType, map[string]any{
		"state":    string(o.State),
		"audience": o.Audience,
	})
	s.publish(ctx, events.TopicPaymentResolved, events.PaymentResolved{
		ReservationID: settled.ReservationID,
		State:         string(o.State),
		Audience:      o.Audience,
		Message:       o.Detail,
		OccurredAt:    s.now().UTC(),
	})
	return o
}

// trustedCallback accepts a valid VNPay signature, or a caller who owns the
// checkout or is staff.
func (s *Service) trustedCallback(caller *session.Profile, c *Checkout, params url.Values) bool {
	if params.Get("vnp_SecureHash") != "" {
		err := payment.VerifyVNPay(params, s.cfg.VNPayHashSecret)
		if err == nil {
			return true
		}
		if errors.Is(err, payment.ErrBadSignature) {
			return false
		}
	}
	if caller == nil {
		return false
	}
	return caller.IsStaff() || caller.ID == c.OwnerID
}

// RedirectURL returns the recorded gateway link for a still-payable checkout.
func (s *Service) RedirectURL(ctx context.Context, reservationID string) (string, error) {
	c, err := s.repo.GetCheckout(ctx, reservationID)
	if err != nil {
		return "", err
	}
	if !c.Status.Open() {
		return "", fmt.Errorf("%w: %s", ErrCheckoutClosed, c.Status)
	}
	if !c.ExpiresAt.IsZero() && !s.now().Before(c.ExpiresAt) {
		return "", payment.ErrReservationExpired
	}
	if c.RedirectURL == "" {
		return "", ErrNoRedirect
	}
	return c.RedirectURL, nil
}

// ExpireStaleCheckouts is intended to be called by the worker periodically
func (s *Service) ExpireStaleCheckouts(ctx context.Context) (int, error) {
	candidates, err := s.repo.FindExpiredCheckouts(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("find expired checkouts: %w", err)
	}

	expired := 0
	for _, c := range candidates {
		_, err := s.repo.UpdateCheckoutStatus(ctx, c.ReservationID, openStatuses, StatusExpired, "reservation hold elapsed")
		if err != nil {
			if !errors.Is(err, ErrCheckoutNotFound) {
				s.logger.Error("failed to expire checkout", "reservation_id", c.ReservationID, "error", err)
			}
			continue
		}
		expired++
		s.logEvent(ctx, c.ReservationID, EventCheckoutExpired, map[string]any{
			"reason": "worker",
		})
	}
	s.metrics.AddExpired(expired)

	return expired, nil
}

func (s *Service) logEvent(ctx context.Context, reservationID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal event payload", "event_type", eventType, "error", err)
		data = nil
	}

	id := reservationID
	ev := EventLog{
		EventType:     eventType,
		ReservationID: &id,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn("failed to insert event log", "event_type", eventType, "reservation_id", reservationID, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

func reservationResult(err error) string {
	switch {
	case errors.Is(err, reservation.ErrRejected):
		return "rejected"
	case errors.Is(err, reservation.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, reservation.ErrAmbiguous):
		return "ambiguous"
	default:
		return "error"
	}
}
