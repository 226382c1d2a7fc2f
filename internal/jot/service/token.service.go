package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"jotter/config"
	"jotter/internal/jot/model"
	"jotter/internal/jot/repository"
	"jotter/pkg/logger"
)

const tokenBytes = 32

// Presented is what a request offers as identity.
type Presented struct {
	Query   string
	Cookie  string
	NewUser bool
}

// TokenStore decides, per request, which document the request is bound to.
type TokenStore struct {
	mode    config.Mode
	docs    repository.DocumentStore
	baseURL string
	fixed   string
}

// NewTokenStore prepares the store for mode. In single mode the fixed token is loaded from
// tokenFile, or generated and persisted there on first run.
func NewTokenStore(mode config.Mode, docs repository.DocumentStore, baseURL, tokenFile string) (*TokenStore, error) {
	s := &TokenStore{mode: mode, docs: docs, baseURL: baseURL}
	if mode == config.ModeSingle {
		token, err := loadOrCreateFixedToken(tokenFile)
		if err != nil {
			return nil, err
		}
		s.fixed = token
	}
	return s, nil
}

func (s *TokenStore) Mode() config.Mode {
	return s.mode
}

// FixedToken is empty outside single mode.
func (s *TokenStore) FixedToken() string {
	return s.fixed
}

// Resolve binds a request to a token or fails with model.ErrUnauthorized / model.ErrInvalidToken.
func (s *TokenStore) Resolve(ctx context.Context, p Presented) (model.Resolution, error) {
	if s.mode == config.ModeSingle {
		return s.resolveSingle(p)
	}
	return s.resolveMulti(ctx, p)
}

func (s *TokenStore) resolveSingle(p Presented) (model.Resolution, error) {
	candidate := p.Query
	if candidate == "" {
		candidate = p.Cookie
	}
	if candidate == "" {
		return model.Resolution{}, model.ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(s.fixed)) != 1 {
		return model.Resolution{}, model.ErrInvalidToken
	}
	return model.Resolution{Token: s.fixed}, nil
}

func (s *TokenStore) resolveMulti(ctx context.Context, p Presented) (model.Resolution, error) {
	var token string
	switch {
	case p.Query != "":
		if !model.ValidToken(p.Query) {
			return model.Resolution{}, model.ErrInvalidToken
		}
		ok, err := s.docs.Exists(ctx, p.Query)
		if err != nil {
			return model.Resolution{}, err
		}
		if !ok {
			return model.Resolution{}, model.ErrInvalidToken
		}
		token = p.Query

	case p.Cookie != "" && model.ValidToken(p.Cookie):
		ok, err := s.docs.Exists(ctx, p.Cookie)
		if err != nil {
			return model.Resolution{}, err
		}
		if ok {
			token = p.Cookie
		}
	}

	if token == "" {
		// Nothing usable was presented. Only a pristine deployment hands out a token for free.
		empty, err := s.docs.Empty(ctx)
		if err != nil {
			return model.Resolution{}, err
		}
		if !empty {
			return model.Resolution{}, model.ErrUnauthorized
		}
		minted, err := GenerateToken()
		if err != nil {
			return model.Resolution{}, err
		}
		logger.Sugar.Infof("Minted first jot token")
		return model.Resolution{Token: minted, Minted: true}, nil
	}

	if p.NewUser {
		sibling, err := s.NewDocument(ctx, token)
		if err != nil {
			return model.Resolution{}, err
		}
		return model.Resolution{Token: sibling, Minted: true}, nil
	}
	return model.Resolution{Token: token}, nil
}

// NewDocument mints a token and seeds its document right away, linking back to from when it
// is set. Single mode cannot create documents.
func (s *TokenStore) NewDocument(ctx context.Context, from string) (string, error) {
	if s.mode == config.ModeSingle {
		return "", errors.New("single mode does not create new jots")
	}
	token, err := GenerateToken()
	if err != nil {
		return "", err
	}
	seed := WelcomeText(s.baseURL, token, from, true)
	if _, err := s.docs.CreateIfAbsent(ctx, token, seed); err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	logger.Sugar.Infof("Created new jot")
	return token, nil
}

// Welcome is the seed text for token.
func (s *TokenStore) Welcome(token string) string {
	return WelcomeText(s.baseURL, token, "", s.mode == config.ModeMulti)
}

// GenerateToken returns 32 random bytes encoded as unpadded URL-safe base64.
func GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func loadOrCreateFixedToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		token := strings.TrimSpace(string(data))
		if !model.ValidToken(token) {
			return "", fmt.Errorf("token file %s holds a malformed token", path)
		}
		return token, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read token file: %w", err)
	}

	token, err := GenerateToken()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create token file directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write token file: %w", err)
	}
	logger.Sugar.Infof("Generated fixed token in %s", path)
	return token, nil
}
