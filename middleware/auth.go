package middleware

import (
	"context"
	"errors"
	"net/http"

	"jotter/internal/jot/model"
	"jotter/internal/jot/service"
	"jotter/pkg/logger"
)

type contextKey string

const (
	TokenKey   contextKey = "token"
	SessionKey contextKey = "sessionID"
)

// TokenFrom returns the token bound by TokenMiddleware.
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(TokenKey).(string)
	return token
}

// SessionFrom returns the session identity set by SessionIssuer.
func SessionFrom(ctx context.Context) string {
	sessionID, _ := ctx.Value(SessionKey).(string)
	return sessionID
}

// TokenMiddleware binds every request to a jot token or rejects it with 403 before any
// handler touches storage.
func TokenMiddleware(tokens *service.TokenStore, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query := r.URL.Query()
			presented := service.Presented{
				Query:   query.Get(model.TokenParam),
				NewUser: query.Get(model.NewUserParam) == "1",
			}
			// The cookie lets later requests omit the query parameter.
			if cookie, err := r.Cookie(model.TokenCookie); err == nil {
				presented.Cookie = cookie.Value
			}

			res, err := tokens.Resolve(r.Context(), presented)
			switch {
			case errors.Is(err, model.ErrUnauthorized):
				http.Error(w, "Forbidden: No token provided", http.StatusForbidden)
				return
			case errors.Is(err, model.ErrInvalidToken):
				logger.Sugar.Warnf("Rejected request to %s: invalid token", r.URL.Path)
				http.Error(w, "Forbidden: Invalid token", http.StatusForbidden)
				return
			case err != nil:
				logger.Sugar.Errorf("Token resolution failed: %v", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			if res.Minted {
				logger.Sugar.Infof("Bound %s request to a newly minted jot", r.URL.Path)
			}
			// Only touch the cookie when the binding changed.
			if res.Minted || presented.Cookie != res.Token {
				SetTokenCookie(w, res.Token, secure)
			}
			ctx := context.WithValue(r.Context(), TokenKey, res.Token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func SetTokenCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     model.TokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
