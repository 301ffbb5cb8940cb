package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatflow/internal/domain"
)

func TestNewPairKey(t *testing.T) {
	t.Run("OrderIndependent", func(t *testing.T) {
		ab, err := domain.NewPairKey(7, 3)
		require.NoError(t, err)
		ba, err := domain.NewPairKey(3, 7)
		require.NoError(t, err)
		assert.Equal(t, ab, ba)
		assert.Equal(t, domain.UserID(3), ab.Low)
		assert.Equal(t, "3:7", ab.String())
		assert.Equal(t, domain.UserID(7), ab.Other(3))
		assert.Equal(t, domain.UserID(3), ab.Other(7))
	})

	t.Run("RejectsSelf", func(t *testing.T) {
		_, err := domain.NewPairKey(4, 4)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("RejectsInvalid", func(t *testing.T) {
		_, err := domain.NewPairKey(0, 4)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestUnreadCounters(t *testing.T) {
	key, err := domain.NewPairKey(1, 2)
	require.NoError(t, err)

	c := domain.NewUnreadCounters(key)
	require.NoError(t, c.Increment(2))
	require.NoError(t, c.Increment(2))
	assert.Equal(t, 2, c.For(2))
	assert.Equal(t, 0, c.For(1))

	assert.ErrorIs(t, c.Increment(9), domain.ErrInvalidInput)
	assert.ErrorIs(t, c.Reset(9), domain.ErrInvalidInput)

	require.NoError(t, c.Reset(2))
	low, high := c.Columns()
	assert.Equal(t, 0, low)
	assert.Equal(t, 0, high)

	_, err = domain.RestoreUnreadCounters(key, -1, 0)
	assert.ErrorIs(t, err, domain.ErrInternal)

	restored, err := domain.RestoreUnreadCounters(key, 0, 5)
	require.NoError(t, err)
	raw, err := json.Marshal(restored)
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":0,"2":5}`, string(raw))
}

func TestParseUserID(t *testing.T) {
	id, err := domain.ParseUserID("42")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID(42), id)

	for _, bad := range []string{"", "abc", "-1", "0", "undefined"} {
		_, err := domain.ParseUserID(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, bad)
	}
}
