package middleware

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"jotter/internal/jot/model"
	"jotter/pkg/logger"
)

const sessionMaxAge = 365 * 24 * time.Hour

// SessionIssuer gives each browser a stable random session id, carried in a signed cookie.
// The id only distinguishes tabs for echo suppression; it grants nothing.
type SessionIssuer struct {
	secret []byte
	secure bool
}

// NewSessionIssuer uses secret as the HMAC key; an empty secret gets a random per-process key,
// which simply re-issues sessions after a restart.
func NewSessionIssuer(secret string, secure bool) (*SessionIssuer, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session key: %w", err)
		}
	}
	return &SessionIssuer{secret: key, secure: secure}, nil
}

func (s *SessionIssuer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := ""
		if cookie, err := r.Cookie(model.SessionCookie); err == nil {
			sessionID = s.Parse(cookie.Value)
		}
		if sessionID == "" {
			var err error
			sessionID, err = s.issue(w)
			if err != nil {
				logger.Sugar.Errorf("Failed to issue session: %v", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
		}
		ctx := context.WithValue(r.Context(), SessionKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Parse returns the session id in a signed cookie value, or "" if it does not verify.
func (s *SessionIssuer) Parse(value string) string {
	token, err := jwt.ParseWithClaims(value, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return ""
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return ""
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return ""
	}
	return claims.Subject
}

// Sign returns the cookie value for sessionID.
func (s *SessionIssuer) Sign(sessionID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sessionMaxAge)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *SessionIssuer) issue(w http.ResponseWriter) (string, error) {
	sessionID := uuid.New().String()
	signed, err := s.Sign(sessionID)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     model.SessionCookie,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(sessionMaxAge / time.Second),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sessionID, nil
}
