package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/driveingest/internal/flagx"
	"github.com/dmitrijs2005/driveingest/internal/timex"
)

// JsonConfig mirrors Config for JSON decoding. Durations use timex.Duration
// so both "300s" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrHTTP string `json:"endpoint_addr_http"`
	EndpointAddrGRPC string `json:"endpoint_addr_grpc"`
	DatabaseDSN      string `json:"database_dsn"`
	RunMigrations    bool   `json:"run_migrations"`

	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`

	PubsubRedisAddr     string `json:"pubsub_redis_addr"`
	PubsubRedisPassword string `json:"pubsub_redis_password"`
	PubsubRedisDB       int    `json:"pubsub_redis_db"`

	IDMethod      string `json:"id"`

	SecretKey     string `json:"secret_key"`
	InstanceURL   string `json:"instance_url"`
	PublicBaseURL string `json:"public_base_url"`
	Prefix        string `json:"prefix"`

	S3RootUser     string         `json:"s3_root_user"`
	S3RootPassword string         `json:"s3_root_password"`
	S3Bucket       string         `json:"s3_bucket"`
	S3Region       string         `json:"s3_region"`
	S3BaseEndpoint string         `json:"s3_base_endpoint"`
	S3PathStyle    bool           `json:"s3_path_style"`
	S3Timeout      timex.Duration `json:"s3_timeout"`

	SessionTTL      timex.Duration `json:"session_ttl"`
	PartMaxSize     int64          `json:"part_max_size"`
	FullUploadLimit int64          `json:"full_upload_limit"`

	ThumbnailSize    int    `json:"thumbnail_size"`
	ThumbnailQuality int    `json:"thumbnail_quality"`
	ThumbnailFilter  string `json:"thumbnail_filter"`
	FFmpegPath       string `json:"ffmpeg"`
	MetadataWorkers  int    `json:"metadata_workers"`

	MetaCacheTTL timex.Duration `json:"meta_cache_ttl"`
	RoleCacheTTL timex.Duration `json:"role_cache_ttl"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
}

// parseJson overlays values from the JSON file named by -c/-config (or the
// DRIVEINGEST_CONFIG variable) onto config. Keys absent from the file keep
// their current value. Unreadable or malformed files panic, the same as
// malformed flags do.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	fromJson(c, config)
}

func toJson(config *Config) *JsonConfig {
	c := &JsonConfig{
		EndpointAddrHTTP: config.EndpointAddrHTTP,
		EndpointAddrGRPC: config.EndpointAddrGRPC,
		DatabaseDSN:      config.DatabaseDSN,
		RunMigrations:    config.RunMigrations,
		RedisAddr:        config.RedisAddr,
		RedisPassword:    config.RedisPassword,
		RedisDB:          config.RedisDB,
		SecretKey:        config.SecretKey,
		InstanceURL:      config.InstanceURL,
		PublicBaseURL:    config.PublicBaseURL,
		Prefix:           config.Prefix,
		S3RootUser:       config.S3RootUser,
		S3RootPassword:   config.S3RootPassword,
		S3Bucket:         config.S3Bucket,
		S3Region:         config.S3Region,
		S3BaseEndpoint:   config.S3BaseEndpoint,
		S3PathStyle:      config.S3PathStyle,
		S3Timeout:        timex.Duration{Duration: config.S3Timeout},
		SessionTTL:       timex.Duration{Duration: config.SessionTTL},
		PartMaxSize:      config.PartMaxSize,
		FullUploadLimit:  config.FullUploadLimit,
		ThumbnailSize:    config.ThumbnailSize,
		ThumbnailQuality: config.ThumbnailQuality,
		ThumbnailFilter:  config.ThumbnailFilter,
		FFmpegPath:       config.FFmpegPath,
		MetadataWorkers:  config.MetadataWorkers,
		MetaCacheTTL:     timex.Duration{Duration: config.MetaCacheTTL},
		RoleCacheTTL:     timex.Duration{Duration: config.RoleCacheTTL},
		LogLevel:         config.LogLevel,
		LogFormat:        config.LogFormat,
	}
	c.PubsubRedisAddr = config.PubsubRedisAddr
	c.PubsubRedisPassword = config.PubsubRedisPassword
	c.PubsubRedisDB = config.PubsubRedisDB
	c.IDMethod = config.IDMethod
	return c
}

func fromJson(c *JsonConfig, config *Config) {
	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.EndpointAddrGRPC = c.EndpointAddrGRPC
	config.DatabaseDSN = c.DatabaseDSN
	config.RunMigrations = c.RunMigrations
	config.RedisAddr = c.RedisAddr
	config.RedisPassword = c.RedisPassword
	config.RedisDB = c.RedisDB
	config.PubsubRedisAddr = c.PubsubRedisAddr
	config.PubsubRedisPassword = c.PubsubRedisPassword
	config.PubsubRedisDB = c.PubsubRedisDB
	config.IDMethod = c.IDMethod
	config.SecretKey = c.SecretKey
	config.InstanceURL = c.InstanceURL
	config.PublicBaseURL = c.PublicBaseURL
	config.Prefix = c.Prefix
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.S3PathStyle = c.S3PathStyle
	config.S3Timeout = c.S3Timeout.Duration
	config.SessionTTL = c.SessionTTL.Duration
	config.PartMaxSize = c.PartMaxSize
	config.FullUploadLimit = c.FullUploadLimit
	config.ThumbnailSize = c.ThumbnailSize
	config.ThumbnailQuality = c.ThumbnailQuality
	config.ThumbnailFilter = c.ThumbnailFilter
	config.FFmpegPath = c.FFmpegPath
	config.MetadataWorkers = c.MetadataWorkers
	config.MetaCacheTTL = c.MetaCacheTTL.Duration
	config.RoleCacheTTL = c.RoleCacheTTL.Duration
	config.LogLevel = c.LogLevel
	config.LogFormat = c.LogFormat
}
