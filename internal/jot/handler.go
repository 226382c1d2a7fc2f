package handler

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"jotter/config"
	"jotter/internal/jot/model"
	"jotter/internal/jot/service"
	"jotter/middleware"
	"jotter/pkg/logger"
	"jotter/socket"
)

const maxJotBytes = 10 << 20

type JotHandler struct {
	Service *service.SyncService
	secure  bool
}

func NewJotHandler(svc *service.SyncService, secure bool) *JotHandler {
	return &JotHandler{Service: svc, secure: secure}
}

// Index serves the editor seeded with the bound jot, creating the jot on first visit.
func (h *JotHandler) Index(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := middleware.TokenFrom(r.Context())
	content, err := h.Service.Open(r.Context(), token)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to open jot: %v", err)
		http.Error(w, "Failed to read jot", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := page.Execute(w, struct{ Content string }{Content: content}); err != nil {
		logger.Sugar.Errorf("Handler: Failed to render page: %v", err)
	}
}

// Write replaces the bound jot with the posted content.
func (h *JotHandler) Write(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJotBytes)
	content, err := readContent(r)
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	token := middleware.TokenFrom(r.Context())
	sessionID := middleware.SessionFrom(r.Context())
	if err := h.Service.Write(r.Context(), token, sessionID, content); err != nil {
		logger.Sugar.Errorf("Handler: Failed to write jot: %v", err)
		http.Error(w, "Failed to write jot", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Updates opens the push channel for the bound jot.
func (h *JotHandler) Updates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	socket.ServeUpdates(h.Service, w, r, middleware.TokenFrom(r.Context()), middleware.SessionFrom(r.Context()))
}

// New creates a companion jot and switches this browser to it.
func (h *JotHandler) New(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Service.Tokens.Mode() != config.ModeMulti {
		http.NotFound(w, r)
		return
	}

	token, err := h.Service.Tokens.NewDocument(r.Context(), middleware.TokenFrom(r.Context()))
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to create jot: %v", err)
		http.Error(w, "Failed to create new jot", http.StatusInternalServerError)
		return
	}

	middleware.SetTokenCookie(w, token, h.secure)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// CleanLink turns /<token> into /?token=<token> when the token names a jot.
func (h *JotHandler) CleanLink(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.URL.Path, "/")
	if token == "" || strings.Contains(token, "/") || !model.ValidToken(token) {
		http.NotFound(w, r)
		return
	}
	if _, err := h.Service.Tokens.Resolve(r.Context(), service.Presented{Query: token}); err != nil {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/?"+model.TokenParam+"="+token, http.StatusSeeOther)
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// readContent accepts a JSON body {"content": ...} or a form field named content.
func readContent(r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req model.WriteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", err
		}
		return req.Content, nil
	}

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxJotBytes); err != nil {
			return "", err
		}
	} else if err := r.ParseForm(); err != nil {
		return "", err
	}
	values, ok := r.PostForm[model.ContentField]
	if !ok || len(values) == 0 {
		return "", errors.New("missing content field")
	}
	return values[0], nil
}
