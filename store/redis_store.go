package store

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-redis/redis/v7"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Key is the sorted set samples are written to.
	Key string
	// Timeout bounds every round trip.
	Timeout time.Duration
}

// RedisStore keeps samples in a Redis sorted set. Each call is a single
// atomic command, so no client-side locking is required.
type RedisStore struct {
	client  *redis.Client
	key     string
	timeout time.Duration
}

func NewRedisStore(options *RedisOptions) *RedisStore {
	key := options.Key
	if key == "" {
		key = DefaultKey
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 250 * time.Millisecond
	}

	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     options.Addr,
			Password: options.Password,
			DB:       options.DB,
		}),
		key:     key,
		timeout: timeout,
	}
}

// Ping checks connectivity, returning ErrStoreUnavailable if Redis cannot be
// reached.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.WithContext(ctx).Ping().Err(); err != nil {
		return fmt.Errorf("%w: PING %s: %v", ErrStoreUnavailable, s.client.Options().Addr, err)
	}
	return nil
}

func (s *RedisStore) Add(ctx context.Context, member string, score float64) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.WithContext(ctx).ZAdd(s.key, &redis.Z{Score: score, Member: member}).Err(); err != nil {
		return fmt.Errorf("%w: ZADD %s: %v", ErrStoreUnavailable, s.key, err)
	}
	return nil
}

func (s *RedisStore) RangeByScore(ctx context.Context, min, max float64) ([]Member, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	zs, err := s.client.WithContext(ctx).ZRangeByScoreWithScores(s.key, &redis.ZRangeBy{
		Min: formatScore(min),
		Max: formatScore(max),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: ZRANGEBYSCORE %s: %v", ErrStoreUnavailable, s.key, err)
	}

	members := make([]Member, 0, len(zs))
	for _, z := range zs {
		// go-redis decodes members as strings; anything else is passed
		// through for the decoder to reject.
		payload, ok := z.Member.(string)
		if !ok {
			payload = fmt.Sprint(z.Member)
		}
		members = append(members, Member{Payload: payload, Score: z.Score})
	}
	return members, nil
}

func (s *RedisStore) RemoveRangeByScore(ctx context.Context, min, max float64) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.WithContext(ctx).ZRemRangeByScore(s.key, formatScore(min), formatScore(max)).Err(); err != nil {
		return fmt.Errorf("%w: ZREMRANGEBYSCORE %s: %v", ErrStoreUnavailable, s.key, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// formatScore renders a score as a Redis range bound.
func formatScore(score float64) string {
	switch {
	case math.IsInf(score, -1):
		return "-inf"
	case math.IsInf(score, 1):
		return "+inf"
	default:
		return strconv.FormatFloat(score, 'f', -1, 64)
	}
}
