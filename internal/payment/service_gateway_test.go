package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceGateway_VNPay(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/vnpay/create-payment-url", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"paymentUrl":"https://sandbox.vnpayment.vn/paymentv2/vpcpay.html?vnp_TxnRef=R1"}`))
	}))
	defer srv.Close()

	gw := NewServiceGateway(MethodVNPay, srv.URL, time.Second)
	url, err := gw.CreateCheckoutURL(context.Background(), OrderFor(Handoff{ReservationID: "R1", Amount: 500000}, "https://clinic/payment/result"))
	require.NoError(t, err)
	assert.Contains(t, url, "vnp_TxnRef=R1")

	assert.Equal(t, "R1", got["orderId"])
	assert.Equal(t, float64(500000), got["amount"])
	assert.Equal(t, "https://clinic/payment/result", got["returnUrl"])
	assert.NotEmpty(t, got["orderInfo"])
}

func TestServiceGateway_StripeNestedURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/stripe/create-checkout-session", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"url":"https://checkout.stripe.com/c/pay/cs_test"}}`))
	}))
	defer srv.Close()

	url, err := NewServiceGateway(MethodStripe, srv.URL, time.Second).
		CreateCheckoutURL(context.Background(), Order{ID: "R1", Amount: 10})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test", url)
}

func TestServiceGateway_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"http error", http.StatusBadGateway, `{"message":"vnpay down"}`, ErrGatewayFailed},
		{"success false", http.StatusOK, `{"success":false,"message":"invalid amount"}`, ErrGatewayFailed},
		{"no url", http.StatusOK, `{"success":true}`, ErrCheckoutURL},
		{"garbage", http.StatusOK, `nope`, ErrGatewayFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewServiceGateway(MethodVNPay, srv.URL, time.Second).
				CreateCheckoutURL(context.Background(), Order{ID: "R1", Amount: 10})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
