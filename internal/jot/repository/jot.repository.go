package repository

import (
	"context"

	"jotter/internal/jot/model"
)

// DocumentStore persists one flat text blob per token.
//
// Write must be atomic with respect to concurrent reads: a reader sees either
// the previous content or the new content, never a mix.
type DocumentStore interface {
	Read(ctx context.Context, token string) (string, error)
	Write(ctx context.Context, token, content string) error
	// LastModified is a metadata probe and must not read the content.
	LastModified(ctx context.Context, token string) (model.Version, error)
	CreateIfAbsent(ctx context.Context, token, seed string) (bool, error)
	Exists(ctx context.Context, token string) (bool, error)
	// Empty reports whether no document has been stored at all.
	Empty(ctx context.Context) (bool, error)
}
