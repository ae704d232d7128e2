package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid access token")

// Claims is the access token payload issued by the auth service.
type Claims struct {
	FullName    string   `json:"name,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	DateOfBirth string   `json:"dob,omitempty"`
	Roles       []string `json:"roles"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 tokens signed with the secret shared with the auth service.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

func (v *Verifier) Verify(raw string) (Profile, error) {
	var claims Claims
	tok, err := v.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil || !tok.Valid {
		return Profile{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Profile{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return Profile{
		ID:          claims.Subject,
		FullName:    claims.FullName,
		Phone:       claims.Phone,
		DateOfBirth: claims.DateOfBirth,
		Roles:       ParseRoles(claims.Roles),
	}, nil
}

// IssueToken signs a token for p. Production tokens come from the auth
// service; this is used by the simulator and tests.
func IssueToken(secret string, p Profile, ttl time.Duration) (string, error) {
	roles := make([]string, len(p.Roles))
	for i, r := range p.Roles {
		roles[i] = string(r)
	}
	now := time.Now().UTC()
	claims := Claims{
		FullName:    p.FullName,
		Phone:       p.Phone,
		DateOfBirth: p.DateOfBirth,
		Roles:       roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
