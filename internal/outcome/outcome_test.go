package outcome

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hackgods/clinic-booking-gateway/internal/session"
)

func TestResolve_StaffSuccess(t *testing.T) {
	o := Resolve(url.Values{"status": {"success"}, "orderId": {"R1"}}, session.AudienceStaff)

	assert.Equal(t, StateSuccess, o.State)
	assert.Equal(t, Action{Label: "Back to invoices", Path: "/invoices"}, o.Action)
	assert.Equal(t, "Payment recorded", o.Title)
	assert.Equal(t, "R1", o.OrderID)
	assert.Equal(t, "staff", o.Audience)
}

func TestResolve_NoStatusIsUnknown(t *testing.T) {
	for _, params := range []url.Values{
		{},
		{"orderId": {"R1"}},
		{"status": {"weird"}},
		{"status": {""}},
	} {
		o := Resolve(params, session.AudiencePatient)
		assert.Equal(t, StateUnknown, o.State, "params %v", params)
		assert.Equal(t, Action{Label: "Contact support", Path: "/support"}, o.Action)
	}
}

func TestResolve_Classification(t *testing.T) {
	tests := []struct {
		query string
		want  State
	}{
		{"status=paid", StateSuccess},
		{"status=SUCCEEDED", StateSuccess},
		{"status=completed", StateSuccess},
		{"status=cancelled", StateFailed},
		{"status=declined", StateFailed},
		{"status=fail", StateFailed},
		{"status=error", StateError},
		{"status=pending", StateUnknown},
		{"status=processing", StateUnknown},
		{"vnp_ResponseCode=00&vnp_TxnRef=R9", StateSuccess},
		{"vnp_ResponseCode=24", StateFailed},
		{"vnp_ResponseCode=51", StateFailed},
		{"vnp_ResponseCode=99", StateError},
		{"redirect_status=succeeded", StateSuccess},
		{"redirect_status=failed", StateFailed},
		{"redirect_status=requires_action", StateUnknown},
		{"status=pending&vnp_ResponseCode=00", StateUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			params, err := url.ParseQuery(tt.query)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, Resolve(params, session.AudiencePatient).State)
		})
	}
}

func TestResolve_PatientActions(t *testing.T) {
	want := map[string]Action{
		"status=success": {Label: "View appointments", Path: "/appointments"},
		"status=failed":  {Label: "Retry booking", Path: "/booking/service"},
		"status=error":   {Label: "Return home", Path: "/"},
	}
	for q, action := range want {
		params, _ := url.ParseQuery(q)
		assert.Equal(t, action, Resolve(params, session.AudiencePatient).Action, q)
	}
}

func TestResolve_IsPure(t *testing.T) {
	params := url.Values{"vnp_ResponseCode": {"00"}, "vnp_TxnRef": {"R1"}, "message": {"ok"}}
	first := Resolve(params, session.AudienceStaff)
	for i := 0; i < 5; i++ {
		Resolve(url.Values{"status": {"failed"}}, session.AudiencePatient)
		assert.Equal(t, first, Resolve(params, session.AudienceStaff))
	}
	assert.Equal(t, "ok", first.Detail)
	assert.Equal(t, "R1", first.OrderID)
}

func TestOrderID(t *testing.T) {
	assert.Equal(t, "A", OrderID(url.Values{"orderId": {"A"}, "vnp_TxnRef": {"B"}}))
	assert.Equal(t, "B", OrderID(url.Values{"vnp_TxnRef": {"B"}, "order_id": {"C"}}))
	assert.Equal(t, "C", OrderID(url.Values{"order_id": {"C"}}))
	assert.Empty(t, OrderID(url.Values{}))
}
