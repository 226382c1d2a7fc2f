package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jotter/internal/jot/model"
)

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "jots"))
	require.NoError(t, err)
	return s
}

func TestFileStoreMissingDocument(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	_, err := s.Read(ctx, "abc")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = s.LastModified(ctx, "abc")
	assert.ErrorIs(t, err, model.ErrNotFound)

	ok, err := s.Exists(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	empty, err := s.Empty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestFileStoreWriteRead(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "abc", "hello"))
	content, err := s.Read(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "hello", content)

	v, err := s.LastModified(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(5), v.Size)

	require.NoError(t, s.Write(ctx, "abc", ""))
	content, err = s.Read(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "", content)

	_, err = os.Stat(filepath.Join(s.Dir, "jot_abc.txt"))
	assert.NoError(t, err)

	temps, err := filepath.Glob(filepath.Join(s.Dir, ".jot-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, temps, "temp files must not be left behind")

	empty, err := s.Empty(ctx)
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestFileStoreCreateIfAbsent(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	created, err := s.CreateIfAbsent(ctx, "abc", "seed")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.CreateIfAbsent(ctx, "abc", "other seed")
	require.NoError(t, err)
	assert.False(t, created)

	content, err := s.Read(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "seed", content)

	temps, err := filepath.Glob(filepath.Join(s.Dir, ".jot-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, temps)
}

func TestFileStoreCreateIfAbsentRace(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	results := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			created, err := s.CreateIfAbsent(ctx, "abc", fmt.Sprintf("seed-%d", i))
			assert.NoError(t, err)
			results[i] = created
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, created := range results {
		if created {
			winners++
		}
	}
	assert.Equal(t, 1, winners)

	content, err := s.Read(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(content, "seed-"))
}

func TestFileStoreConcurrentWritesNeverTear(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, "abc", "initial"))

	const writers = 8
	valid := map[string]bool{"initial": true}
	contents := make([]string, writers)
	for i := range contents {
		contents[i] = strings.Repeat(string(rune('a'+i)), 4096*(i+1))
		valid[contents[i]] = true
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			content, err := s.Read(ctx, "abc")
			if assert.NoError(t, err) {
				assert.True(t, valid[content], "read a torn document of %d bytes", len(content))
			}
		}
	}()

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				assert.NoError(t, s.Write(ctx, "abc", contents[i]))
			}
		}(i)
	}
	wg.Wait()
	close(stop)
	<-readerDone

	final, err := s.Read(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, valid[final])
	assert.NotEqual(t, "initial", final)
}
