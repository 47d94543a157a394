package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// SessionClaims is the data carried inside a session token.
// CSRF is the per-session secret every state-changing request must echo.
type SessionClaims struct {
	IsAdmin bool   `json:"adm,omitempty"`
	CSRF    string `json:"csrf"`
	jwt.RegisteredClaims
}

// UserID returns the numeric subject of the token.
func (c *SessionClaims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// Session is a freshly issued session token.
type Session struct {
	Token     string
	CSRF      string
	ExpiresAt time.Time
}

// NewSessionToken signs a session token for a user.
func NewSessionToken(secret string, userID int64, isAdmin bool, ttl time.Duration) (Session, error) {
	// 1. Generate the per-session CSRF secret.
	csrf, err := NewCSRFToken()
	if err != nil {
		return Session{}, err
	}

	// 2. Create the claims.
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := SessionClaims{
		IsAdmin: isAdmin,
		CSRF:    csrf,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			Issuer:    "jeweluxe",
		},
	}

	// 3. Sign the token with HS256.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return Session{}, err
	}
	return Session{Token: signed, CSRF: csrf, ExpiresAt: exp}, nil
}

// ParseSessionToken validates a token string and returns its claims.
func ParseSessionToken(secret, tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Check the signing method.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.CSRF == "" {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}

// NewCSRFToken returns 32 random bytes, hex encoded.
func NewCSRFToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
