package sessions

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// OpenClient returns a go-redis client after checking that the server
// answers PING.
func OpenClient(ctx context.Context, address, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}
