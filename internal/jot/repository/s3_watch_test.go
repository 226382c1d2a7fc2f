package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jotter/config"
	"jotter/internal/jot/repository"
	"jotter/internal/jot/service"
)

func TestS3WatcherDeliversSameSecondEdit(t *testing.T) {
	docs := repository.NewMemoryS3Store()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tokens, err := service.NewTokenStore(config.ModeMulti, docs, "http://localhost:8000", "")
	require.NoError(t, err)
	writers := service.NewWriterAttribution()
	watcher := service.NewChangeWatcher(docs, writers, 10*time.Millisecond, nil)
	svc := service.NewSyncService(tokens, docs, writers, watcher, nil)

	require.NoError(t, svc.Write(ctx, "abc", "A", "hello"))

	received := make(chan string, 8)
	go watcher.Watch(ctx, "abc", "B", func(content string) error {
		received <- content
		return nil
	})

	select {
	case content := <-received:
		assert.Equal(t, "hello", content)
	case <-time.After(2 * time.Second):
		t.Fatal("viewer B got no initial content")
	}

	require.NoError(t, svc.Write(ctx, "abc", "A", "hellp"))
	select {
	case content := <-received:
		assert.Equal(t, "hellp", content)
	case <-time.After(2 * time.Second):
		t.Fatal("viewer B never received A's same-length edit")
	}
}
