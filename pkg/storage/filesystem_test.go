package storage

import (
	"context"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) *LocalStorage {
	t.Helper()
	store, err := NewLocalStorage(t.TempDir(), NewSignedURLSigner("secret", time.Hour), "http://localhost:8080/api/v1/files/photos")
	require.NoError(t, err)
	return store
}

func TestLocalStoragePutGetDelete(t *testing.T) {
	store := newLocal(t)
	ctx := context.Background()

	link, err := store.Put(ctx, "owner-1/NDC-000001-1.png", strings.NewReader("png-bytes"), 9, "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "http://localhost:8080/api/v1/files/photos?token="))

	parsed, err := url.Parse(link)
	require.NoError(t, err)
	key, err := store.KeyFromToken(parsed.Query().Get("token"))
	require.NoError(t, err)
	assert.Equal(t, "owner-1/NDC-000001-1.png", key)

	rc, err := store.Get(ctx, key)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "png-bytes", string(body))

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)

	require.NoError(t, store.Delete(ctx, key))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store := newLocal(t)
	_, err := store.Put(context.Background(), "../escape.png", strings.NewReader("x"), 1, "image/png")
	assert.Error(t, err)
}

func TestLocalStorageKeyFromTokenChecksScope(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	store, err := NewLocalStorage(t.TempDir(), signer, "/files/photos")
	require.NoError(t, err)

	token, _, err := signer.Generate("report", "owner-1/a.png")
	require.NoError(t, err)
	_, err = store.KeyFromToken(token)
	assert.Error(t, err)
}
