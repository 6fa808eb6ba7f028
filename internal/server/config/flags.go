package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/driveingest/internal/flagx"
)

var ownFlags = []string{
	"-a", "-grpc", "-d", "-migrate", "-r", "-redis-password", "-redis-db",
	"-pubsub-r", "-pubsub-redis-password", "-pubsub-redis-db", "-id",
	"-s", "-url", "-base-url", "-prefix",
	"-u", "-p", "-b", "-region", "-e", "-path-style", "-s3-timeout",
	"-session-ttl", "-part-max-size", "-full-upload-limit",
	"-thumbnail-size", "-ffmpeg", "-workers", "-log-level", "-log-format",
}

// parseFlags overlays command-line flags onto config.
//
// Supported flags:
//
//	-a string          HTTP bind address (e.g. ":3000")
//	-grpc string       gRPC health bind address
//	-d string          PostgreSQL DSN
//	-migrate bool      run embedded migrations on start (use -migrate=false)
//	-r string          Redis address
//	-pubsub-r string   Redis address for events (default: the -r connection)
//	-id string         id scheme (aid|aidx|meid|meidg|ulid|objectid)
//	-s string          JWT HMAC secret key
//	-url string        instance URL
//	-base-url string   public base URL for stored objects
//	-prefix string     object key prefix
//	-u / -p string     S3 access key / secret key
//	-b string          S3 bucket
//	-region string     S3 region
//	-e string          S3 base endpoint
//	-path-style bool   S3 path-style addressing
//	-session-ttl dur   multipart session TTL
//	-part-max-size n   largest accepted part, bytes
//	-full-upload-limit n  largest single-shot upload, bytes
//	-ffmpeg string     ffmpeg binary, "" disables video metadata
//
// Only these flags are looked at; os.Args is filtered first with
// flagx.FilterArgs so unrelated flags do not cause a parse error.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], ownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port to run server")
	fs.StringVar(&config.EndpointAddrGRPC, "grpc", config.EndpointAddrGRPC, "gRPC health address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.BoolVar(&config.RunMigrations, "migrate", config.RunMigrations, "run migrations on start")

	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.RedisPassword, "redis-password", config.RedisPassword, "redis password")
	fs.IntVar(&config.RedisDB, "redis-db", config.RedisDB, "redis database number")
	fs.StringVar(&config.PubsubRedisAddr, "pubsub-r", config.PubsubRedisAddr, "redis address for events")
	fs.StringVar(&config.PubsubRedisPassword, "pubsub-redis-password", config.PubsubRedisPassword, "redis password for events")
	fs.IntVar(&config.PubsubRedisDB, "pubsub-redis-db", config.PubsubRedisDB, "redis database number for events")

	fs.StringVar(&config.IDMethod, "id", config.IDMethod, "id scheme")

	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.InstanceURL, "url", config.InstanceURL, "instance URL")
	fs.StringVar(&config.PublicBaseURL, "base-url", config.PublicBaseURL, "public base URL of stored objects")
	fs.StringVar(&config.Prefix, "prefix", config.Prefix, "object key prefix")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 access key")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "region", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.BoolVar(&config.S3PathStyle, "path-style", config.S3PathStyle, "S3 path-style addressing")
	fs.DurationVar(&config.S3Timeout, "s3-timeout", config.S3Timeout, "S3 operation timeout")

	fs.DurationVar(&config.SessionTTL, "session-ttl", config.SessionTTL, "multipart session TTL")
	fs.Int64Var(&config.PartMaxSize, "part-max-size", config.PartMaxSize, "max part size, bytes")
	fs.Int64Var(&config.FullUploadLimit, "full-upload-limit", config.FullUploadLimit, "max single-shot upload size, bytes")

	fs.IntVar(&config.ThumbnailSize, "thumbnail-size", config.ThumbnailSize, "thumbnail bounding box, px")
	fs.StringVar(&config.FFmpegPath, "ffmpeg", config.FFmpegPath, "ffmpeg binary")
	fs.IntVar(&config.MetadataWorkers, "workers", config.MetadataWorkers, "concurrent metadata extractions")

	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")
	fs.StringVar(&config.LogFormat, "log-format", config.LogFormat, "log format (json|text)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
