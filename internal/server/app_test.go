package server

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/driveingest/internal/server/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenPubsub(t *testing.T) {
	sessionsRedis := miniredis.RunT(t)
	shared := redis.NewClient(&redis.Options{Addr: sessionsRedis.Addr()})
	t.Cleanup(func() { _ = shared.Close() })

	t.Run("falls back to the shared client", func(t *testing.T) {
		var c config.Config
		c.LoadDefaults()

		got, err := openPubsub(context.Background(), &c, shared)
		require.NoError(t, err)
		assert.Same(t, shared, got)
	})

	t.Run("opens a separate connection", func(t *testing.T) {
		eventsRedis := miniredis.RunT(t)
		var c config.Config
		c.LoadDefaults()
		c.PubsubRedisAddr = eventsRedis.Addr()

		got, err := openPubsub(context.Background(), &c, shared)
		require.NoError(t, err)
		t.Cleanup(func() { _ = got.Close() })
		assert.NotSame(t, shared, got)

		require.NoError(t, got.Set(context.Background(), "k", "v", 0).Err())
		assert.True(t, eventsRedis.Exists("k"))
		assert.False(t, sessionsRedis.Exists("k"))
	})

	t.Run("unreachable address fails", func(t *testing.T) {
		var c config.Config
		c.LoadDefaults()
		c.PubsubRedisAddr = "127.0.0.1:1"

		_, err := openPubsub(context.Background(), &c, shared)
		require.Error(t, err)
	})
}
