package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_Roundtrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "media-1", []byte("hello")))

	data, err := store.Load(ctx, "media-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	require.NoError(t, store.Delete(ctx, "media-1"))

	_, err = store.Load(ctx, "media-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorage_MissingObject(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Load(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing object is a no-op.
	assert.NoError(t, store.Delete(ctx, "nope"))
}

func TestLocalStorage_SanitizesID(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)
	ctx := context.Background()

	// Path separators in the ID must not escape the base directory.
	require.NoError(t, store.Save(ctx, "../escape", []byte("x")))
	data, err := store.Load(ctx, "../escape")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}
