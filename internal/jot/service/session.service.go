package service

import (
	"context"
	"fmt"

	"jotter/internal/jot/model"
	"jotter/internal/jot/repository"
	"jotter/pkg/logger"
)

// Pusher is a server-to-client channel for one subscription.
type Pusher interface {
	// PushContent replaces the document shown by the client.
	PushContent(content string) error
	// CleanURL asks the client to drop the token from its visible URL.
	CleanURL() error
}

// Notifier is told about every successful write.
type Notifier interface {
	Notify(token string)
}

// SyncService runs subscriptions and writes for bound requests.
type SyncService struct {
	Tokens   *TokenStore
	docs     repository.DocumentStore
	writers  *WriterAttribution
	watcher  *ChangeWatcher
	notifier Notifier
}

func NewSyncService(tokens *TokenStore, docs repository.DocumentStore, writers *WriterAttribution, watcher *ChangeWatcher, notifier Notifier) *SyncService {
	return &SyncService{Tokens: tokens, docs: docs, writers: writers, watcher: watcher, notifier: notifier}
}

// Open makes sure the document exists, seeding it with the welcome text, and returns its content.
func (s *SyncService) Open(ctx context.Context, token string) (string, error) {
	created, err := s.docs.CreateIfAbsent(ctx, token, s.Tokens.Welcome(token))
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	if created {
		logger.Sugar.Infof("Seeded new jot with welcome text")
		s.notify(token)
	}
	content, err := s.docs.Read(ctx, token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	return content, nil
}

// Subscribe pushes the current content and a one-time URL cleanup, then every change made
// by other sessions until ctx is cancelled.
func (s *SyncService) Subscribe(ctx context.Context, token, sessionID string, p Pusher) error {
	if _, err := s.Open(ctx, token); err != nil {
		return err
	}

	first := true
	return s.watcher.Watch(ctx, token, sessionID, func(content string) error {
		if err := p.PushContent(content); err != nil {
			return err
		}
		if first {
			first = false
			return p.CleanURL()
		}
		return nil
	})
}

// Write replaces the document and attributes the change to sessionID.
func (s *SyncService) Write(ctx context.Context, token, sessionID, content string) error {
	// Attribute first so a watcher polling between the write and the record
	// cannot mistake this session's own write for someone else's.
	s.writers.Record(token, sessionID)
	if err := s.docs.Write(ctx, token, content); err != nil {
		return fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	s.notify(token)
	return nil
}

func (s *SyncService) notify(token string) {
	if s.notifier != nil {
		s.notifier.Notify(token)
	}
}
