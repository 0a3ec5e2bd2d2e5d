package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("photo", "owner-1/NDC-123456-1700000000.jpg")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	scope, key, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "photo", scope)
	require.Equal(t, "owner-1/NDC-123456-1700000000.jpg", key)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Millisecond*10)
	token, _, err := signer.Generate("photo", "owner-1/a.png")
	require.NoError(t, err)
	time.Sleep(time.Millisecond * 20)

	_, _, _, err = signer.Parse(token, false)
	require.Error(t, err)

	scope, key, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "photo", scope)
	require.Equal(t, "owner-1/a.png", key)
}

func TestSignedURLSignerRejectsTamperedToken(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("photo", "owner-1/a.png")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[0] = "export"
	_, _, _, err = signer.Parse(strings.Join(parts, "."), false)
	require.Error(t, err)

	other := NewSignedURLSigner("other", time.Hour)
	_, _, _, err = other.Parse(token, false)
	require.Error(t, err)
}

func TestSignedURLSignerRejectsMalformedTokens(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	for _, token := range []string{"", "no-dot", "!!!.abc", "cGhvdG8.!!!"} {
		_, _, _, err := signer.Parse(token, true)
		require.Error(t, err, token)
	}

	_, _, err := signer.Generate("photo", "a\nb")
	require.Error(t, err)
}
