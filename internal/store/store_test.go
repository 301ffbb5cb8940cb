package store_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatflow/internal/domain"
	"chatflow/internal/store"
)

func TestOpenSQLite(t *testing.T) {
	db, repos, err := store.Open("sqlite", filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	defer db.Close()

	assert.NotNil(t, repos.Users)
	assert.NotNil(t, repos.Messages)
	assert.NotNil(t, repos.Conversations)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, _, err := store.Open("mysql", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
