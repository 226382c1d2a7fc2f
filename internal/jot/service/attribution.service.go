package service

import (
	"github.com/patrickmn/go-cache"
)

// WriterAttribution remembers which session wrote each document last. Entries live for the
// lifetime of the process; a stale entry only affects one suppression decision.
type WriterAttribution struct {
	cache *cache.Cache
}

func NewWriterAttribution() *WriterAttribution {
	// No expiry and no janitor goroutine.
	return &WriterAttribution{cache: cache.New(cache.NoExpiration, 0)}
}

// Record overwrites the last writer of token.
func (a *WriterAttribution) Record(token, sessionID string) {
	a.cache.Set(token, sessionID, cache.NoExpiration)
}

func (a *WriterAttribution) LastWriter(token string) (string, bool) {
	if x, found := a.cache.Get(token); found {
		return x.(string), true
	}
	return "", false
}
