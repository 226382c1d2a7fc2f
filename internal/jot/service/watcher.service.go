package service

import (
	"context"
	"errors"
	"time"

	"jotter/internal/jot/model"
	"jotter/internal/jot/repository"
	"jotter/pkg/logger"
)

const DefaultPollInterval = 100 * time.Millisecond

// Hints lets a watcher wake up before its next tick. Hints only shorten the wait; the
// watcher still compares versions before emitting anything.
type Hints interface {
	Subscribe(token string) (<-chan struct{}, func())
}

// EmitFunc receives document content. Returning an error stops the watch.
type EmitFunc func(content string) error

// ChangeWatcher polls a document's version and emits content when it advances.
type ChangeWatcher struct {
	docs     repository.DocumentStore
	writers  *WriterAttribution
	interval time.Duration
	hints    Hints
}

func NewChangeWatcher(docs repository.DocumentStore, writers *WriterAttribution, interval time.Duration, hints Hints) *ChangeWatcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &ChangeWatcher{docs: docs, writers: writers, interval: interval, hints: hints}
}

// watchState is everything a subscription holds besides its ticker.
type watchState struct {
	baseline model.Version
	seen     bool
}

// Watch emits the current content once, then every later change not written by sessionID.
// It returns nil when ctx is cancelled, or the first error from emit or the store.
func (w *ChangeWatcher) Watch(ctx context.Context, token, sessionID string, emit EmitFunc) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var wake <-chan struct{}
	if w.hints != nil {
		ch, cancel := w.hints.Subscribe(token)
		defer cancel()
		wake = ch
	}

	var st watchState
	for {
		if err := w.poll(ctx, token, sessionID, &st, emit); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-wake:
		}
	}
}

func (w *ChangeWatcher) poll(ctx context.Context, token, sessionID string, st *watchState, emit EmitFunc) error {
	version, err := w.docs.LastModified(ctx, token)
	if errors.Is(err, model.ErrNotFound) {
		// Briefly absent, e.g. mid-replace. Keep the baseline and retry next tick.
		return nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if st.seen && version.Equal(st.baseline) {
		return nil
	}

	content, err := w.docs.Read(ctx, token)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	if st.seen {
		if writer, ok := w.writers.LastWriter(token); ok && writer == sessionID {
			// Our own write: treat it as observed without echoing it back.
			st.baseline = version
			logger.Sugar.Debugf("Suppressed self-echo for session %s", sessionID)
			return nil
		}
	}

	if err := emit(content); err != nil {
		return err
	}
	st.baseline = version
	st.seen = true
	return nil
}
