package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.opentelemetry.io/otel/attribute"
)

// checkoutSessionCreator is the slice of the Stripe client this gateway uses.
type checkoutSessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeDirectGateway creates Stripe Checkout Sessions itself instead of
// going through the payment microservice.
type StripeDirectGateway struct {
	sessions  checkoutSessionCreator
	currency  string
	cancelURL string
}

func NewStripeDirectGateway(secretKey, cancelURL string) *StripeDirectGateway {
	sc := client.New(secretKey, nil)
	return &StripeDirectGateway{
		sessions:  sc.CheckoutSessions,
		currency:  "vnd",
		cancelURL: cancelURL,
	}
}

func (g *StripeDirectGateway) CreateCheckoutURL(ctx context.Context, order Order) (string, error) {
	ctx, span := tracer.Start(ctx, "payment.stripe.create_checkout_session")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.order_id", order.ID),
		attribute.Int64("booking.amount", order.Amount),
	)

	successURL := withQuery(order.ReturnURL, "status=success&orderId="+order.ID)
	cancelURL := g.cancelURL
	if cancelURL == "" {
		cancelURL = withQuery(order.ReturnURL, "status=failed&orderId="+order.ID)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(order.ID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(g.currency),
					UnitAmount: stripe.Int64(order.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(order.Info),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", order.ID)

	sess, err := g.sessions.New(params)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: stripe: %v", ErrGatewayFailed, err)
	}
	if sess == nil || sess.URL == "" {
		return "", fmt.Errorf("%w: stripe", ErrCheckoutURL)
	}
	return sess.URL, nil
}

func withQuery(base, query string) string {
	if base == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + query
}
