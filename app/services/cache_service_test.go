package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	type stats struct {
		Total int `json:"total"`
	}

	var got stats
	ok, err := c.GetJSON(ctx, "stats", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetJSON(ctx, "stats", stats{Total: 3}, time.Minute))
	ok, err = c.GetJSON(ctx, "stats", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, got.Total)

	set, err := c.SetNX(ctx, "resend:a@b.co", time.Minute)
	require.NoError(t, err)
	assert.True(t, set)
	set, err = c.SetNX(ctx, "resend:a@b.co", time.Minute)
	require.NoError(t, err)
	assert.False(t, set)

	now = now.Add(time.Minute)

	ok, err = c.GetJSON(ctx, "stats", &got)
	require.NoError(t, err)
	assert.False(t, ok, "entry expires at its ttl")

	set, err = c.SetNX(ctx, "resend:a@b.co", time.Minute)
	require.NoError(t, err)
	assert.True(t, set)

	require.NoError(t, c.Delete(ctx, "resend:a@b.co"))
	set, err = c.SetNX(ctx, "resend:a@b.co", time.Minute)
	require.NoError(t, err)
	assert.True(t, set)
}
