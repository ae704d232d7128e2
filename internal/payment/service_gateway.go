package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("clinic.booking.payment")

var servicePaths = map[Method]string{
	MethodVNPay:  "/payments/vnpay/create-payment-url",
	MethodStripe: "/payments/stripe/create-checkout-session",
}

// ServiceGateway asks the payment microservice for a checkout URL. Both
// gateways share the request shape; only the endpoint differs.
type ServiceGateway struct {
	method     Method
	baseURL    string
	httpClient *http.Client
}

func NewServiceGateway(method Method, baseURL string, timeout time.Duration) *ServiceGateway {
	return &ServiceGateway{
		method:     method,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type createURLRequest struct {
	OrderID   string `json:"orderId"`
	Amount    int64  `json:"amount"`
	OrderInfo string `json:"orderInfo"`
	ReturnURL string `json:"returnUrl,omitempty"`
}

type createURLResponse struct {
	Success    *bool  `json:"success"`
	Message    string `json:"message"`
	PaymentURL string `json:"paymentUrl"`
	URL        string `json:"url"`
	Data       struct {
		PaymentURL string `json:"paymentUrl"`
		URL        string `json:"url"`
	} `json:"data"`
}

func (r createURLResponse) checkoutURL() string {
	for _, u := range []string{r.PaymentURL, r.URL, r.Data.PaymentURL, r.Data.URL} {
		if u = strings.TrimSpace(u); u != "" {
			return u
		}
	}
	return ""
}

func (g *ServiceGateway) CreateCheckoutURL(ctx context.Context, order Order) (string, error) {
	ctx, span := tracer.Start(ctx, "payment.create_checkout_url")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.gateway", string(g.method)),
		attribute.String("booking.order_id", order.ID),
		attribute.Int64("booking.amount", order.Amount),
	)

	url, err := g.create(ctx, order)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return url, nil
}

func (g *ServiceGateway) create(ctx context.Context, order Order) (string, error) {
	path, ok := servicePaths[g.method]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownGateway, g.method)
	}

	body, err := json.Marshal(createURLRequest{
		OrderID:   order.ID,
		Amount:    order.Amount,
		OrderInfo: order.Info,
		ReturnURL: order.ReturnURL,
	})
	if err != nil {
		return "", fmt.Errorf("encode payment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build payment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrGatewayFailed, g.method, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var parsed createURLResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode >= http.StatusMultipleChoices {
		msg := parsed.Message
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return "", fmt.Errorf("%w: %s: status %d: %s", ErrGatewayFailed, g.method, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%w: %s: decode: %v", ErrGatewayFailed, g.method, decodeErr)
	}
	if parsed.Success != nil && !*parsed.Success {
		return "", fmt.Errorf("%w: %s: %s", ErrGatewayFailed, g.method, parsed.Message)
	}

	url := parsed.checkoutURL()
	if url == "" {
		return "", fmt.Errorf("%w: %s", ErrCheckoutURL, g.method)
	}
	return url, nil
}
