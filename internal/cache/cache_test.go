package cache

import (
	"context"
	"testing"

	"github.com/jeweluxe/jeweluxe-golang/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient_DisabledWithoutAddr(t *testing.T) {
	rdb, err := NewRedisClient(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, rdb)
}

func TestInvalidatePrefix_NilClient(t *testing.T) {
	n, err := InvalidatePrefix(context.Background(), nil, "jx:cache")
	require.NoError(t, err)
	assert.Zero(t, n)
}
