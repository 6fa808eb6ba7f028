package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	t.Setenv("DRIVEINGEST_CONFIG", "")

	path := writeTempJSON(t, map[string]any{
		"endpoint_addr_http": "0.0.0.0:4000",
		"redis_addr":         "redis:6379",
		"prefix":             "drive",
		"s3_bucket":          "media",
		"s3_path_style":      false,
		"session_ttl":        "2m",
		"part_max_size":      8 * MiB,
		"role_cache_ttl":     int64(time.Hour),
		"id":                 "ulid",
		"pubsub_redis_addr":  "pubsub:6379",
	})

	t.Run("loads from json, keeps absent keys", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", path}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "0.0.0.0:4000", cfg.EndpointAddrHTTP)
		assert.Equal(t, "redis:6379", cfg.RedisAddr)
		assert.Equal(t, "drive", cfg.Prefix)
		assert.Equal(t, "media", cfg.S3Bucket)
		assert.False(t, cfg.S3PathStyle)
		assert.Equal(t, 2*time.Minute, cfg.SessionTTL)
		assert.Equal(t, int64(8*MiB), cfg.PartMaxSize)
		assert.Equal(t, time.Hour, cfg.RoleCacheTTL)
		assert.Equal(t, "ulid", cfg.IDMethod)
		assert.Equal(t, "pubsub:6379", cfg.PubsubRedisAddr)
		assert.Equal(t, 0, cfg.PubsubRedisDB)

		assert.Equal(t, ":50051", cfg.EndpointAddrGRPC)
		assert.Equal(t, int64(10*MiB), cfg.FullUploadLimit)
		assert.Equal(t, 60*time.Second, cfg.S3Timeout)
	})

	t.Run("env var names the file", func(t *testing.T) {
		os.Args = []string{"testbin"}
		t.Setenv("DRIVEINGEST_CONFIG", path)

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)
		assert.Equal(t, "media", cfg.S3Bucket)
	})

	t.Run("no config → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{}
		cfg.LoadDefaults()
		want := *cfg
		parseJson(cfg)
		assert.Equal(t, want, *cfg)
	})

	t.Run("missing file panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", filepath.Join(t.TempDir(), "nope.json")}
		assert.Panics(t, func() { parseJson(&Config{}) })
	})

	t.Run("invalid json panics", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
		os.Args = []string{"testbin", "-c", bad}
		assert.Panics(t, func() { parseJson(&Config{}) })
	})
}
