package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/quasaranchor/anchor"
	anchorerrors "github.com/quasaranchor/anchor/errors"
)

const bearerTokenTTL = 24 * time.Hour

// minJWTSecretLength is the lower bound spec.md §3/§6.3 place on the
// shared HMAC secret.
const minJWTSecretLength = 32

// JWT issues and verifies the bearer tokens minted after SEP-10
// verification, backed by HMAC-SHA256 via golang-jwt.
type JWT struct {
	secret []byte
	issuer string
}

// NewJWT builds a JWT issuer/verifier pair. secret must be at least 32
// octets (spec.md §6.3 "jwt_secret (>= 32 octets)").
func NewJWT(secret, issuer string) (*JWT, error) {
	if len(secret) < minJWTSecretLength {
		return nil, anchorerrors.BadRequest("config", fmt.Sprintf("jwt_secret must be at least %d octets", minJWTSecretLength), nil)
	}
	return &JWT{secret: []byte(secret), issuer: issuer}, nil
}

type claims struct {
	jwt.RegisteredClaims
}

// Issue mints a bearer token. Claims.IssuedAt/ExpiresAt are ignored in
// favor of now/now+24h, since issuance time is authoritative here, not
// caller-supplied.
func (j *JWT) Issue(_ context.Context, c anchor.JWTClaims) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   c.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(bearerTokenTTL)),
		},
	})
	signed, err := token.SignedString(j.secret)
	if err != nil {
		return "", anchorerrors.Internal("auth", "failed to sign bearer token", err)
	}
	return signed, nil
}

// Verify validates a bearer token's signature and expiry, returning its
// claims. An expired or malformed token surfaces as unauthorized
// (spec.md §4.2.2, P4).
func (j *JWT) Verify(_ context.Context, token string) (*anchor.JWTClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return j.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, anchorerrors.Unauthorized("auth", "invalid or expired bearer token", err)
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, anchorerrors.Unauthorized("auth", "invalid bearer token claims", nil)
	}
	issuedAt := time.Time{}
	if c.IssuedAt != nil {
		issuedAt = c.IssuedAt.Time
	}
	expiresAt := time.Time{}
	if c.ExpiresAt != nil {
		expiresAt = c.ExpiresAt.Time
	}
	return &anchor.JWTClaims{
		Subject:   c.Subject,
		Issuer:    c.Issuer,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

var (
	_ anchor.JWTIssuer   = (*JWT)(nil)
	_ anchor.JWTVerifier = (*JWT)(nil)
)
