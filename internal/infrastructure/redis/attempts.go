package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/valid-names/internal/domain"
	"github.com/valid-names/internal/pkg/id"
)

// acquireLua is a sliding-window log over a sorted set scored by creation
// time in milliseconds.
// KEYS[1] = bucket key
// ARGV[1] = now ms, ARGV[2] = window start ms, ARGV[3] = max attempts,
// ARGV[4] = retention start ms, ARGV[5] = member, ARGV[6] = key ttl ms
// Returns {allowed (0|1), count before insert}.
var acquireLua = goredis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[3])

if tonumber(ARGV[6]) > 0 then
  redis.call('ZREMRANGEBYSCORE', key, '-inf', '(' .. ARGV[4])
end

local count = redis.call('ZCOUNT', key, ARGV[2], '+inf')
if count >= limit then
  return {0, count}
end

redis.call('ZADD', key, ARGV[1], ARGV[5])
if tonumber(ARGV[6]) > 0 then
  redis.call('PEXPIRE', key, ARGV[6])
end
return {1, count}
`)

// AttemptStore keeps rate-limit records in Redis sorted sets, one per
// (purpose, email). Members encode the IP so records stay distinguishable.
type AttemptStore struct {
	client goredis.UniversalClient
	prefix string
}

func NewAttemptStore(client goredis.UniversalClient, prefix string) *AttemptStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &AttemptStore{client: client, prefix: prefix}
}

func (s *AttemptStore) key(purpose domain.RateLimitPurpose, email string) string {
	return s.prefix + "rl:" + string(purpose) + ":" + email
}

func (s *AttemptStore) Acquire(ctx context.Context, a domain.RateLimitAttempt) (int, bool, error) {
	created := a.Record.CreatedAt
	member := id.NewAt(created) + "|" + a.Record.IPAddress
	res, err := acquireLua.Run(ctx, s.client,
		[]string{s.key(a.Record.Purpose, a.Record.Email)},
		created.UnixMilli(),
		a.WindowStart.UnixMilli(),
		a.MaxAttempts,
		created.Add(-a.Retention).UnixMilli(),
		member,
		a.Retention.Milliseconds(),
	).Result()
	if err != nil {
		return 0, false, fmt.Errorf("redis rate limit: acquire: %w", err)
	}
	arr, ok := res.([]interface{})
	if !ok || len(arr) != 2 {
		return 0, false, fmt.Errorf("redis rate limit: unexpected result %T", res)
	}
	allowed, _ := arr[0].(int64)
	count, _ := arr[1].(int64)
	return int(count), allowed == 1, nil
}

// DeleteBefore walks every bucket with SCAN and trims members scored before
// cutoff. Emptied sets disappear on their own.
func (s *AttemptStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	upper := fmt.Sprintf("(%d", cutoff.UnixMilli())
	deleted := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"rl:*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := s.client.ZRemRangeByScore(ctx, iter.Val(), "-inf", upper).Result()
		if err != nil {
			return deleted, fmt.Errorf("redis rate limit: trim %s: %w", iter.Val(), err)
		}
		deleted += int(n)
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis rate limit: scan: %w", err)
	}
	return deleted, nil
}
