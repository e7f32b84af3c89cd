package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	path, err := m.Upload(ctx, "owner/run/1.md", []byte("# report"), "text/markdown")
	require.NoError(t, err)
	assert.Equal(t, "owner/run/1.md", path)

	data, ok := m.Object(path)
	require.True(t, ok)
	assert.Equal(t, []byte("# report"), data)

	url1, err := m.SignedURL(ctx, path, time.Hour)
	require.NoError(t, err)
	url2, err := m.SignedURL(ctx, path, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, url1, url2, "each signing issues a fresh URL")
}

func TestMemoryStoreSignMissingObject(t *testing.T) {
	m := NewMemoryStore()
	_, err := m.SignedURL(context.Background(), "nope", time.Hour)
	require.Error(t, err)
}
