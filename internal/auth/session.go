package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Session is the authenticated identity carried by the session cookie.
type Session struct {
	Username string
	Theme    string
	UserID   uint
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Theme    string `json:"theme"`
	UserID   uint   `json:"uid"`
}

// SessionCodec signs and verifies session tokens with HMAC-SHA256.
type SessionCodec struct {
	now    func() time.Time
	secret []byte
}

// NewSessionCodec creates a codec using secret as the signing key.
func NewSessionCodec(secret []byte) (*SessionCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("session secret cannot be empty")
	}
	return &SessionCodec{secret: secret, now: time.Now}, nil
}

// Encode signs the session. Tokens carry no expiry and live as long as the
// browser keeps the cookie.
func (c *SessionCodec) Encode(s *Session) (string, error) {
	if s == nil || s.UserID == 0 {
		return "", errors.New("session user id cannot be empty")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(c.now()),
		},
		UserID:   s.UserID,
		Username: s.Username,
		Theme:    s.Theme,
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %w", err)
	}
	return signed, nil
}

// Decode verifies the token and returns its session. Any verification failure
// returns an error; callers treat it as "no session".
func (c *SessionCodec) Decode(token string) (*Session, error) {
	claims := &sessionClaims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("invalid session token")
	}
	if claims.UserID == 0 {
		return nil, errors.New("session user id missing")
	}

	return &Session{
		UserID:   claims.UserID,
		Username: claims.Username,
		Theme:    claims.Theme,
	}, nil
}
