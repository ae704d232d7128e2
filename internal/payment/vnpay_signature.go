package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"
)

var (
	ErrUnsignedCallback = errors.New("callback carries no gateway signature")
	ErrBadSignature     = errors.New("callback signature does not match")
)

const (
	vnpSecureHash     = "vnp_SecureHash"
	vnpSecureHashType = "vnp_SecureHashType"
)

// SignVNPay computes vnp_SecureHash over the vnp_ parameters: sorted by key,
// query-escaped, HMAC-SHA512 with the merchant secret.
func SignVNPay(params url.Values, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if !strings.HasPrefix(k, "vnp_") || k == vnpSecureHash || k == vnpSecureHashType {
			continue
		}
		if params.Get(k) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params.Get(k)))
	}

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyVNPay checks the callback signature. An empty secret verifies nothing.
func VerifyVNPay(params url.Values, secret string) error {
	got := strings.ToLower(strings.TrimSpace(params.Get(vnpSecureHash)))
	if secret == "" || got == "" {
		return ErrUnsignedCallback
	}
	want := SignVNPay(params, secret)
	if !hmac.Equal([]byte(got), []byte(want)) {
		return ErrBadSignature
	}
	return nil
}
