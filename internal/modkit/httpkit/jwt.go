package httpkit

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	perr "arledger/internal/platform/errors"
)

// HS256 verifies and issues shared secret bearer tokens
type HS256 struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewHS256 requires a secret of at least 32 bytes, issuer may be empty
func NewHS256(secret, issuer string) (*HS256, error) {
	if len(secret) < 32 {
		return nil, perr.InvalidArgf("jwt secret must be at least 32 bytes")
	}
	return &HS256{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Issue signs a token for subject valid for ttl
func (h *HS256) Issue(subject string, ttl time.Duration) (string, error) {
	now := h.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    h.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUnknown, "sign token")
	}
	return s, nil
}

// Parse is a TokenFunc, the subject becomes the user id
func (h *HS256) Parse(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(h.now),
	}
	if h.issuer != "" {
		opts = append(opts, jwt.WithIssuer(h.issuer))
	}
	var claims jwt.RegisteredClaims
	if _, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) { return h.secret, nil }, opts...); err != nil {
		return "", perr.Unauthorizedf("invalid token: %v", err)
	}
	if claims.Subject == "" {
		return "", perr.Unauthorizedf("token has no subject")
	}
	return claims.Subject, nil
}

// Port adapts the verifier to the auth middleware
func (h *HS256) Port() *Port { return NewPortFunc(h.Parse) }
