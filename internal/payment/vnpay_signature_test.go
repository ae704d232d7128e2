package payment

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyVNPay(t *testing.T) {
	const secret = "merchant-secret"
	signed := url.Values{
		"vnp_TxnRef":       {"R1"},
		"vnp_Amount":       {"50000000"},
		"vnp_ResponseCode": {"00"},
		"vnp_OrderInfo":    {"Thanh toan lich hen R1"},
	}
	signed.Set("vnp_SecureHash", strings.ToUpper(SignVNPay(signed, secret)))
	signed.Set("vnp_SecureHashType", "HmacSHA512")

	assert.NoError(t, VerifyVNPay(signed, secret))

	tampered := url.Values{}
	for k, v := range signed {
		tampered[k] = v
	}
	tampered.Set("vnp_ResponseCode", "24")
	assert.ErrorIs(t, VerifyVNPay(tampered, secret), ErrBadSignature)

	assert.ErrorIs(t, VerifyVNPay(signed, "other-secret"), ErrBadSignature)
	assert.ErrorIs(t, VerifyVNPay(signed, ""), ErrUnsignedCallback)
	assert.ErrorIs(t, VerifyVNPay(url.Values{"vnp_TxnRef": {"R1"}}, secret), ErrUnsignedCallback)
}

func TestSignVNPay_IgnoresForeignAndEmptyParams(t *testing.T) {
	base := url.Values{"vnp_TxnRef": {"R1"}, "vnp_ResponseCode": {"00"}}
	noisy := url.Values{
		"vnp_TxnRef":       {"R1"},
		"vnp_ResponseCode": {"00"},
		"vnp_BankCode":     {""},
		"status":           {"success"},
	}
	assert.Equal(t, SignVNPay(base, "s"), SignVNPay(noisy, "s"))
}
