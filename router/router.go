package router

import (
	"net/http"

	jotHandler "jotter/internal/jot"
	"jotter/internal/jot/service"
	"jotter/middleware"
)

func Setup(svc *service.SyncService, sessions *middleware.SessionIssuer, secure bool) http.Handler {
	mux := http.NewServeMux()

	h := jotHandler.NewJotHandler(svc, secure)
	auth := func(next http.HandlerFunc) http.Handler {
		return sessions.Middleware(middleware.TokenMiddleware(svc.Tokens, secure)(next))
	}

	index := auth(h.Index)
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Anything other than the root is a clean /<token> link.
		if r.URL.Path != "/" {
			h.CleanLink(w, r)
			return
		}
		index.ServeHTTP(w, r)
	}))
	mux.Handle("/write", auth(h.Write))
	mux.Handle("/updates", auth(h.Updates))
	mux.Handle("/new", auth(h.New))
	mux.HandleFunc("/healthz", jotHandler.Healthz)

	return middleware.RequestLogger(mux)
}
