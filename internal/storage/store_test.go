package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/deidaraiorek/searchcore/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := storage.Open(context.Background(), storage.Config{Driver: "oracle", DSN: "x"})
	require.ErrorIs(t, err, storage.ErrUnsupportedDriver)
}

func TestOpenDefaultsToSQLite(t *testing.T) {
	store, err := storage.Open(context.Background(), storage.Config{DSN: ":memory:"})
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, storage.DriverSQLite, store.Driver())
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "index.db")

	store, err := storage.Open(ctx, storage.Config{Driver: storage.DriverSQLite, DSN: dbPath})
	require.NoError(t, err)

	urlID, err := store.GetOrCreate(ctx, storage.URLs, "https://golang.org")
	require.NoError(t, err)
	sess, err := store.Begin(ctx)
	require.NoError(t, err)
	wordID, err := sess.GetOrCreate(ctx, storage.Words, "gopher")
	require.NoError(t, err)
	require.NoError(t, sess.InsertPosting(ctx, urlID, wordID, 0))
	require.NoError(t, sess.Commit())
	require.NoError(t, store.Close())

	store, err = storage.Open(ctx, storage.Config{Driver: storage.DriverSQLite, DSN: dbPath})
	require.NoError(t, err)
	defer store.Close()

	indexed, err := store.IsIndexed(ctx, "https://golang.org")
	require.NoError(t, err)
	assert.True(t, indexed)

	got, found, err := store.Lookup(ctx, storage.URLs, "https://golang.org")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, urlID, got)
}

func TestTableString(t *testing.T) {
	assert.Equal(t, "urllist", storage.URLs.String())
	assert.Equal(t, "wordlist", storage.Words.String())
	assert.Equal(t, "Table(7)", storage.Table(7).String())
}
