package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRepositoryWithoutClient(t *testing.T) {
	repo := NewSessionRepository(nil, nil)

	require.NoError(t, repo.Revoke(context.Background(), "jti-1", time.Minute))
	revoked, err := repo.IsRevoked(context.Background(), "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.NoError(t, repo.Close())
}

func TestRevokedKey(t *testing.T) {
	assert.Equal(t, "ndc:revoked:abc", revokedKey("abc"))
}
