package reservation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Reserve(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/appointments/reserve", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"reservationId":"R1","amount":500000}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second, 15*time.Minute)
	fixed := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	res, err := c.Reserve(context.Background(), Request{
		PatientID: "p1",
		ServiceID: "svc",
		DentistID: "den",
		SlotIDs:   []string{"s1", "s2"},
		Date:      "2026-10-20",
		Notes:     "sensitive tooth",
	})
	require.NoError(t, err)
	assert.Equal(t, "R1", res.ID)
	assert.Equal(t, int64(500000), res.Amount)
	assert.Empty(t, res.RedirectURL)
	assert.Equal(t, fixed.Add(15*time.Minute), res.ExpiresAt)

	assert.Equal(t, "p1", got.PatientID)
	assert.Equal(t, []string{"s1", "s2"}, got.SlotIDs)
	assert.Equal(t, "sensitive tooth", got.Notes)
}

func TestClient_Reserve_RedirectAndServerExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"orderId":"R2","amount":"250000",
			"paymentUrl":" https://sandbox.vnpayment.vn/pay?x=1 ","expiresAt":"2026-10-19T09:15:00Z"}}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, time.Second, 15*time.Minute).Reserve(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "R2", res.ID)
	assert.Equal(t, int64(250000), res.Amount)
	assert.Equal(t, "https://sandbox.vnpayment.vn/pay?x=1", res.RedirectURL)
	assert.Equal(t, time.Date(2026, 10, 19, 9, 15, 0, 0, time.UTC), res.ExpiresAt)
}

func TestClient_Reserve_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"success false", http.StatusOK, `{"success":false,"message":"slot taken"}`, ErrRejected},
		{"conflict", http.StatusConflict, `{"message":"slot taken"}`, ErrRejected},
		{"garbage body", http.StatusOK, `<html>`, ErrRejected},
		{"fractional amount", http.StatusOK, `{"success":true,"data":{"reservationId":"R1","amount":500000.7}}`, ErrRejected},
		{"fractional amount string", http.StatusOK, `{"success":true,"data":{"reservationId":"R1","amount":"0.5"}}`, ErrRejected},
		{"server error", http.StatusInternalServerError, `boom`, ErrUnavailable},
		{"gateway timeout", http.StatusGatewayTimeout, ``, ErrAmbiguous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			res, err := NewClient(srv.URL, time.Second, time.Minute).Reserve(context.Background(), Request{})
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_Reserve_WholeFloatAmountKept(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"reservationId":"R1","amount":500000.0}}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, time.Second, time.Minute).Reserve(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, int64(500000), res.Amount)
}

func TestClient_Reserve_TimeoutIsAmbiguous(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(srv.URL, 50*time.Millisecond, time.Minute).Reserve(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrAmbiguous)
	assert.Equal(t, int32(1), calls.Load(), "no silent retry")
}

func TestClient_Reserve_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := NewClient(addr, time.Second, time.Minute).Reserve(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrUnavailable)
}
