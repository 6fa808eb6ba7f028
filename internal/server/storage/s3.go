// Package storage talks to the S3-compatible object store that backs the
// drive: single-shot puts, the multipart lifecycle and presigned reads.
package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/driveingest/internal/common"
	"github.com/dmitrijs2005/driveingest/internal/logging"
	sc "github.com/dmitrijs2005/driveingest/internal/server/config"
	"github.com/dmitrijs2005/driveingest/internal/server/models"
)

// CacheImmutable is the cache policy of every stored object; keys are never reused.
const CacheImmutable = "max-age=31536000, immutable"

// ErrTooLarge is returned by Get when the object exceeds the caller's limit.
var ErrTooLarge = errors.New("object exceeds read limit")

// ErrNoSuchUpload is returned when the store no longer knows a multipart upload id.
var ErrNoSuchUpload = fmt.Errorf("%w: no such multipart upload", common.ErrorStorage)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}
)

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, in *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// PutOptions are the object headers set when an object is created.
type PutOptions struct {
	ContentType  string
	CacheControl string
	Disposition  string
}

// Orchestrator is the object store as seen by the upload pipeline.
type Orchestrator interface {
	Put(ctx context.Context, key string, body []byte, opts PutOptions) error
	OpenMultipart(ctx context.Context, key string, opts PutOptions) (string, error)
	UploadPart(ctx context.Context, key, uploadID string, number int32, body []byte) (string, error)
	CompleteMultipart(ctx context.Context, key, uploadID string, parts []models.UploadPart) error
	AbortMultipart(ctx context.Context, key, uploadID string)
	Get(ctx context.Context, key string, limit int64) ([]byte, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Ping(ctx context.Context) error
}

// S3Storage implements Orchestrator on aws-sdk-go-v2.
type S3Storage struct {
	client  s3API
	presign presignAPI
	bucket  string
	timeout time.Duration
	logger  logging.Logger
}

// New builds the S3 client from configuration. Static credentials are used
// so the gateway works against MinIO and other S3-compatible stores.
func New(ctx context.Context, cfg *sc.Config, logger logging.Logger) (*S3Storage, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		}
		o.UsePathStyle = cfg.S3PathStyle
	})

	return newS3Storage(client, newS3PresignClient(client), cfg.S3Bucket, cfg.S3Timeout, logger), nil
}

func newS3Storage(client s3API, presign presignAPI, bucket string, timeout time.Duration, logger logging.Logger) *S3Storage {
	return &S3Storage{
		client:  client,
		presign: presign,
		bucket:  bucket,
		timeout: timeout,
		logger:  logger.With("module", "storage"),
	}
}

func (s *S3Storage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *S3Storage) Put(ctx context.Context, key string, body []byte, opts PutOptions) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentMD5:    aws.String(contentMD5(body)),
		ContentType:   aws.String(opts.ContentType),
	}
	if opts.CacheControl != "" {
		in.CacheControl = aws.String(opts.CacheControl)
	}
	if opts.Disposition != "" {
		in.ContentDisposition = aws.String(opts.Disposition)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		s.logger.Error(ctx, "put object failed", "key", key, "error", err)
		return classify("put object", err)
	}

	s.logger.Debug(ctx, "object stored", "key", key, "bytes", len(body))
	return nil
}

func (s *S3Storage) OpenMultipart(ctx context.Context, key string, opts PutOptions) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	in := &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(opts.ContentType),
	}
	if opts.CacheControl != "" {
		in.CacheControl = aws.String(opts.CacheControl)
	}
	if opts.Disposition != "" {
		in.ContentDisposition = aws.String(opts.Disposition)
	}

	out, err := s.client.CreateMultipartUpload(ctx, in)
	if err != nil {
		s.logger.Error(ctx, "create multipart upload failed", "key", key, "error", err)
		return "", classify("create multipart upload", err)
	}
	if out.UploadId == nil || *out.UploadId == "" {
		return "", fmt.Errorf("%w: create multipart upload: empty upload id", common.ErrorStorage)
	}

	s.logger.Info(ctx, "multipart upload opened", "key", key, "upload_id", *out.UploadId)
	return *out.UploadId, nil
}

func (s *S3Storage) UploadPart(ctx context.Context, key, uploadID string, number int32, body []byte) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	out, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(number),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentMD5:    aws.String(contentMD5(body)),
	})
	if err != nil {
		s.logger.Error(ctx, "upload part failed", "key", key, "part", number, "error", err)
		return "", classify("upload part", err)
	}

	etag := aws.ToString(out.ETag)
	if etag == "" {
		return "", fmt.Errorf("%w: upload part %d: empty etag", common.ErrorStorage, number)
	}

	s.logger.Debug(ctx, "part uploaded", "key", key, "part", number, "bytes", len(body))
	return etag, nil
}

func (s *S3Storage) CompleteMultipart(ctx context.Context, key, uploadID string, parts []models.UploadPart) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	completed := make([]types.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(p.Number),
		})
	}

	_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		s.logger.Error(ctx, "complete multipart upload failed", "key", key, "upload_id", uploadID, "error", err)
		return classify("complete multipart upload", err)
	}

	s.logger.Info(ctx, "multipart upload completed", "key", key, "parts", len(parts))
	return nil
}

// AbortMultipart cancels an upload. Failures are logged and swallowed; a
// leftover upload is cleaned up by the bucket lifecycle.
func (s *S3Storage) AbortMultipart(ctx context.Context, key, uploadID string) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		s.logger.Warn(ctx, "abort multipart upload failed", "key", key, "upload_id", uploadID, "error", err)
		return
	}

	s.logger.Info(ctx, "multipart upload aborted", "key", key, "upload_id", uploadID)
}

// Get reads a whole object into memory, refusing objects over limit bytes.
func (s *S3Storage) Get(ctx context.Context, key string, limit int64) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classify("get object", err)
	}
	defer out.Body.Close()

	if out.ContentLength != nil && *out.ContentLength > limit {
		return nil, ErrTooLarge
	}

	b, err := io.ReadAll(io.LimitReader(out.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: get object: %v", common.ErrorStorage, err)
	}
	if int64(len(b)) > limit {
		return nil, ErrTooLarge
	}
	return b, nil
}

// PresignGet returns a time-limited GET URL for key.
func (s *S3Storage) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", classify("presign get", err)
	}
	return req.URL, nil
}

// Ping checks that the bucket exists and is reachable.
func (s *S3Storage) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return classify("head bucket", err)
	}
	return nil
}

func classify(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchUpload":
			return fmt.Errorf("%s: %w", op, ErrNoSuchUpload)
		case "NoSuchBucket":
			return fmt.Errorf("%w: %s: bucket does not exist", common.ErrorStorage, op)
		}
		return fmt.Errorf("%w: %s: %s: %s", common.ErrorStorage, op, apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return fmt.Errorf("%w: %s: %v", common.ErrorStorage, op, err)
}

func contentMD5(b []byte) string {
	sum := md5.Sum(b)
	return base64.StdEncoding.EncodeToString(sum[:])
}
