package authsvc

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mkrupp/jobhunter/internal/domain"
)

const sessionTokenIssuer = "jobhunter-authsvc"

// SessionClaims is the payload of the session cookie. It names the session
// record and the user; the record itself stays on the server.
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// SignSessionToken signs a PS256 token for session.
func SignSessionToken(key *rsa.PrivateKey, session domain.Session) (string, error) {
	//nolint:exhaustruct
	claims := SessionClaims{
		SessionID: session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionTokenIssuer,
			Subject:   session.UserID,
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodPS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// ParseSessionToken verifies the signature, issuer and expiry of tokenString
// at time now. Every failure wraps domain.ErrInvalidSessionToken.
func ParseSessionToken(tokenString string, publicKey *rsa.PublicKey, now time.Time) (*SessionClaims, error) {
	var claims SessionClaims

	_, err := jwt.ParseWithClaims(
		tokenString,
		&claims,
		func(*jwt.Token) (any, error) { return publicKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodPS256.Alg()}),
		jwt.WithIssuer(sessionTokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, errors.Join(domain.ErrInvalidSessionToken, err)
	}

	if claims.SessionID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("missing sid or sub: %w", domain.ErrInvalidSessionToken)
	}

	return &claims, nil
}
