// Package sessions persists resumable upload sessions in Redis.
//
// A session is stored as versioned JSON under
// "multipartUpload:<base64url(sha256(token))>"; the raw token the client
// holds is never written anywhere. Consumption (finish, abort) goes through
// GETDEL so at most one caller ever observes a given session record.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/driveingest/internal/common"
	"github.com/dmitrijs2005/driveingest/internal/cryptox"
	"github.com/dmitrijs2005/driveingest/internal/server/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "multipartUpload:"
	lockPrefix = "multipartUpload:lock:"
)

// ErrCorrupt reports a stored record that cannot be decoded or carries an
// unknown layout version.
var ErrCorrupt = errors.New("corrupt upload session")

// Store is the session persistence used by the upload state machine.
// Lookups of unknown or expired tokens fail with common.ErrorNotFound.
type Store interface {
	Create(ctx context.Context, token string, s *models.UploadSession, ttl time.Duration) error
	Load(ctx context.Context, token string) (*models.UploadSession, error)
	// Save overwrites an existing record and refreshes its TTL. It never
	// resurrects a record that was consumed in the meantime.
	Save(ctx context.Context, token string, s *models.UploadSession, ttl time.Duration) error
	// Take atomically reads and deletes the record.
	Take(ctx context.Context, token string) (*models.UploadSession, error)
	// Lock serializes mutating calls on one session. A held lock yields
	// common.ErrorConflict. The returned func releases the lock.
	Lock(ctx context.Context, token string, ttl time.Duration) (func(), error)
}

// RedisStore implements Store on a go-redis client.
type RedisStore struct {
	rdb redis.Cmdable
}

func NewRedisStore(rdb redis.Cmdable) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Key returns the Redis key a token maps to.
func Key(token string) string {
	return keyPrefix + cryptox.TokenDigest(token)
}

func (s *RedisStore) Create(ctx context.Context, token string, sess *models.UploadSession, ttl time.Duration) error {
	b, err := encode(sess)
	if err != nil {
		return err
	}

	ok, err := s.rdb.SetNX(ctx, Key(token), b, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: redis: %v", common.ErrorInternal, err)
	}
	if !ok {
		return common.ErrorConflict
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, token string) (*models.UploadSession, error) {
	b, err := s.rdb.Get(ctx, Key(token)).Bytes()
	return decodeResult(b, err)
}

func (s *RedisStore) Save(ctx context.Context, token string, sess *models.UploadSession, ttl time.Duration) error {
	b, err := encode(sess)
	if err != nil {
		return err
	}

	ok, err := s.rdb.SetXX(ctx, Key(token), b, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: redis: %v", common.ErrorInternal, err)
	}
	if !ok {
		return common.ErrorNotFound
	}
	return nil
}

func (s *RedisStore) Take(ctx context.Context, token string) (*models.UploadSession, error) {
	b, err := s.rdb.GetDel(ctx, Key(token)).Bytes()
	return decodeResult(b, err)
}

var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (s *RedisStore) Lock(ctx context.Context, token string, ttl time.Duration) (func(), error) {
	key := lockPrefix + cryptox.TokenDigest(token)
	owner := uuid.NewString()

	ok, err := s.rdb.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis: %v", common.ErrorInternal, err)
	}
	if !ok {
		return nil, common.ErrorConflict
	}

	return func() {
		// The request context may already be gone; the lock must still go.
		_ = unlockScript.Run(context.WithoutCancel(ctx), s.rdb, []string{key}, owner).Err()
	}, nil
}

func encode(sess *models.UploadSession) ([]byte, error) {
	sess.Version = models.UploadSessionVersion
	b, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("%w: encode session: %v", common.ErrorInternal, err)
	}
	return b, nil
}

func decodeResult(b []byte, err error) (*models.UploadSession, error) {
	if errors.Is(err, redis.Nil) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: redis: %v", common.ErrorInternal, err)
	}

	sess := &models.UploadSession{}
	if err := json.Unmarshal(b, sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if sess.Version != models.UploadSessionVersion {
		return nil, fmt.Errorf("%w: version %d", ErrCorrupt, sess.Version)
	}
	return sess, nil
}
