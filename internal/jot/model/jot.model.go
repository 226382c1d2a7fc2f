package model

import (
	"errors"
	"regexp"
	"time"
)

var (
	// ErrUnauthorized means the request carried no usable token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidToken means a token was presented but names no document.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNotFound means the document has no backing content (yet, or any more).
	ErrNotFound = errors.New("document not found")
	// ErrPersistence wraps storage failures surfaced to callers.
	ErrPersistence = errors.New("persistence failure")
)

// tokenRe validates the format of a token to prevent path traversal.
var tokenRe = regexp.MustCompile(`^[A-Za-z0-9_-]+=*$`)

// ValidToken reports whether s is safe to use as a storage key.
func ValidToken(s string) bool {
	return tokenRe.MatchString(s)
}

// Version is the cheap metadata stamp a store reports for a document.
// It is a proxy for "content changed", not a logical clock.
type Version struct {
	ModTime time.Time
	Size    int64
	// Tag tells apart writes that share ModTime and Size, e.g. an S3 ETag when
	// timestamps only have second resolution. Empty when the store has none.
	Tag string
}

func (v Version) Equal(o Version) bool {
	return v.ModTime.Equal(o.ModTime) && v.Size == o.Size && v.Tag == o.Tag
}

// Resolution is the outcome of binding a request to a document.
type Resolution struct {
	Token string
	// Minted is set when the token was issued during this request.
	Minted bool
}

type WriteRequest struct {
	Content string `json:"content"`
}

const (
	TokenCookie   = "token"
	SessionCookie = "sid"
	TokenParam    = "token"
	NewUserParam  = "newuser"
	ContentField  = "content"
)
