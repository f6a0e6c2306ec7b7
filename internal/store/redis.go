package store

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the connection to the backing store.
type RedisOptions struct {
	Host     string
	Port     int
	Password string
	TLS      bool
}

// NewRedisClient opens and verifies a connection to the store. One client
// from it is shared by the Redis-backed Log, UserStore, TopicStore, and the
// Coordinator's publisher; the Coordinator opens its dedicated subscriber
// connection through a separate call, so that connection is never shared
// with the stores' request connections (see Coordinator.Start).
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	ropts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Password: opts.Password,
	}
	if opts.TLS {
		ropts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(ropts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return client, nil
}
