package channel

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/redis/go-redis/v9"
)

// Config configures the Redis-backed channel transport.
type Config struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisSource publishes and replays join/part messages through a Redis
// Stream. A stream (rather than plain pub/sub) is used because Subscribe
// must be able to replay from an arbitrary past timestamp, not just observe
// messages published after the call.
type RedisSource struct {
	client    *redis.Client
	logger    lgr.L
	keyPrefix string
}

// NewRedisSource dials cfg.Address and returns a RedisSource.
func NewRedisSource(logger lgr.L, cfg Config) (*RedisSource, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("channel: redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("channel: connect to redis at %s: %w", cfg.Address, err)
	}

	return &RedisSource{client: client, logger: logger, keyPrefix: cfg.KeyPrefix}, nil
}

// Close releases the underlying Redis connection.
func (s *RedisSource) Close() error {
	return s.client.Close()
}

func (s *RedisSource) streamKey(community string) string {
	return fmt.Sprintf("%schannel:%s", s.keyPrefix, community)
}

// Publish appends a message to community's stream, keyed by the message's
// own timestamp so independent publishers still produce a replayable order.
func (s *RedisSource) Publish(ctx context.Context, community string, msg Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	id := fmt.Sprintf("%d-*", msg.MessageID.Timestamp)
	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.streamKey(community),
		ID:     id,
		Values: map[string]interface{}{"payload": data},
	}).Err()
	if err != nil {
		return fmt.Errorf("channel: publish to %s: %w", community, err)
	}
	return nil
}

// subscribeStream replays every message at or after fromTimestampMs on
// community's stream, then continues streaming new ones as they arrive.
func (s *RedisSource) subscribeStream(ctx context.Context, community string, fromTimestampMs int64) (<-chan Message, error) {
	out := make(chan Message)
	// XRead returns only entries whose ID is greater than lastID, so start
	// just before the first possible ID at fromTimestampMs.
	lastID := "0-0"
	if fromTimestampMs > 0 {
		lastID = fmt.Sprintf("%d-%d", fromTimestampMs-1, uint64(math.MaxUint64))
	}

	go func() {
		defer close(out)
		for {
			if ctx.Err() != nil {
				return
			}
			result, err := s.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{s.streamKey(community), lastID},
				Block:   2 * time.Second,
				Count:   100,
			}).Result()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Logf("WARN channel: stream read failed: %v", err)
				continue
			}
			for _, stream := range result {
				for _, entry := range stream.Messages {
					payload, ok := entry.Values["payload"].(string)
					if !ok {
						continue
					}
					msg, decodeErr := Decode([]byte(payload))
					if decodeErr != nil {
						s.logger.Logf("WARN channel: skipping malformed message %s: %v", entry.ID, decodeErr)
						lastID = entry.ID
						continue
					}
					select {
					case out <- msg:
					case <-ctx.Done():
						return
					}
					lastID = entry.ID
				}
			}
		}
	}()

	return out, nil
}

// CommunitySource binds a RedisSource to one community's stream, satisfying
// the Source interface the Watcher depends on (spec.md §4.9 — one operator
// process handles one community, so this is the shape callers actually use).
type CommunitySource struct {
	redis     *RedisSource
	community string
}

// NewCommunitySource scopes src to a single community.
func NewCommunitySource(src *RedisSource, community string) *CommunitySource {
	return &CommunitySource{redis: src, community: community}
}

// Subscribe implements Source.
func (c *CommunitySource) Subscribe(ctx context.Context, fromTimestampMs int64) (<-chan Message, error) {
	return c.redis.subscribeStream(ctx, c.community, fromTimestampMs)
}

// Publish appends a message to this source's community stream.
func (c *CommunitySource) Publish(ctx context.Context, msg Message) error {
	return c.redis.Publish(ctx, c.community, msg)
}

var _ Source = (*CommunitySource)(nil)
