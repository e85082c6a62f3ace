package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bizvistar/billing-backend/pkg/config"
)

var signingMethod = jwt.SigningMethodHS256

var (
	// ErrTokenExpired means the token was well formed but is past exp.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers every other rejection.
	ErrTokenInvalid = errors.New("token invalid")
)

// MintAccessToken signs a token for payload. Browsers get theirs from the
// identity service; this serves local tooling and tests.
func MintAccessToken(cfg config.JWTConfig, now time.Time, ttl time.Duration, payload AccessTokenPayload) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", errors.New("jwt secret is required")
	case cfg.Issuer == "":
		return "", errors.New("jwt issuer is required")
	case ttl <= 0:
		return "", errors.New("token ttl must be positive")
	case payload.UserID == uuid.Nil:
		return "", errors.New("user id is required")
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	claims := AccessTokenClaims{
		UserID: payload.UserID,
		Email:  strings.TrimSpace(payload.Email),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   payload.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry, then resolves the
// caller id from user_id or, failing that, the subject.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}

	claims := &AccessTokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return []byte(cfg.Secret), nil },
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if claims.UserID == uuid.Nil {
		id, err := uuid.Parse(claims.Subject)
		if err != nil || id == uuid.Nil {
			return nil, fmt.Errorf("%w: no user id", ErrTokenInvalid)
		}
		claims.UserID = id
	}
	return claims, nil
}
