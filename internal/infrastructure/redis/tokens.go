package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/valid-names/internal/domain"
)

// keyGrace keeps a token key alive a little past expires_at so the
// inclusive expiry instant is still answered from data, not from a miss.
const keyGrace = time.Second

// A user's active token of one kind lives in a single slot hash keyed
// "tok:{<user>}:<kind>", so superseding it is one overwrite of one key and
// every script touches a single cluster slot. "tokidx:<hash>" maps a digest
// back to its slot; the slot's token_hash field is authoritative.

// issueLua replaces the slot contents with the new token.
// KEYS[1] = slot key
// ARGV[1] = token hash, ARGV[2] = kind, ARGV[3] = user id,
// ARGV[4] = expires_at ms, ARGV[5] = created_at ms, ARGV[6] = key expiry ms
var issueLua = goredis.NewScript(`
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], 'token_hash', ARGV[1], 'kind', ARGV[2], 'user_id', ARGV[3], 'expires_at', ARGV[4], 'created_at', ARGV[5])
redis.call('PEXPIREAT', KEYS[1], ARGV[6])
return 1
`)

// consumeLua deletes and returns the slot when it still holds the presented
// hash, the kind matches and it has not expired. Returns nil otherwise.
// KEYS[1] = slot key
// ARGV[1] = token hash, ARGV[2] = expected kind, ARGV[3] = now ms
var consumeLua = goredis.NewScript(`
local cur = redis.call('HMGET', KEYS[1], 'token_hash', 'kind', 'expires_at')
if not cur[1] or cur[1] ~= ARGV[1] or cur[2] ~= ARGV[2] then
  return false
end
if tonumber(cur[3]) < tonumber(ARGV[3]) then
  return false
end
local data = redis.call('HGETALL', KEYS[1])
redis.call('DEL', KEYS[1])
return data
`)

// TokenStore keeps email tokens as Redis hashes, one per (user, kind).
type TokenStore struct {
	client goredis.UniversalClient
	prefix string
}

func NewTokenStore(client goredis.UniversalClient, prefix string) *TokenStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &TokenStore{client: client, prefix: prefix}
}

func (s *TokenStore) slotPrefix() string { return s.prefix + "tok:" }

func (s *TokenStore) slotKey(userID string, kind domain.TokenKind) string {
	return s.slotPrefix() + "{" + userID + "}:" + string(kind)
}

func (s *TokenStore) indexKey(hash string) string { return s.prefix + "tokidx:" + hash }

func (s *TokenStore) Issue(ctx context.Context, t *domain.EmailToken) error {
	keyExpiry := t.ExpiresAt.Add(keyGrace)
	idx := s.indexKey(t.TokenHash)
	err := s.client.SetArgs(ctx, idx, s.slotKey(t.UserID, t.Kind), goredis.SetArgs{Mode: "NX", ExpireAt: keyExpiry}).Err()
	if errors.Is(err, goredis.Nil) {
		return fmt.Errorf("email token already exists: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("redis token: index: %w", err)
	}
	err = issueLua.Run(ctx, s.client,
		[]string{s.slotKey(t.UserID, t.Kind)},
		t.TokenHash,
		string(t.Kind),
		t.UserID,
		t.ExpiresAt.UnixMilli(),
		t.CreatedAt.UnixMilli(),
		keyExpiry.UnixMilli(),
	).Err()
	if err != nil {
		s.client.Del(ctx, idx)
		return fmt.Errorf("redis token: issue: %w", err)
	}
	return nil
}

// slotFor resolves a digest to its slot key; "" means unknown.
func (s *TokenStore) slotFor(ctx context.Context, tokenHash string) (string, error) {
	slot, err := s.client.Get(ctx, s.indexKey(tokenHash)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	return slot, err
}

func (s *TokenStore) Get(ctx context.Context, tokenHash string) (*domain.EmailToken, error) {
	slot, err := s.slotFor(ctx, tokenHash)
	if err != nil {
		return nil, fmt.Errorf("redis token: get: %w", err)
	}
	if slot == "" {
		return nil, fmt.Errorf("email token not found: %w", domain.ErrNotFound)
	}
	fields, err := s.client.HGetAll(ctx, slot).Result()
	if err != nil {
		return nil, fmt.Errorf("redis token: get: %w", err)
	}
	if fields["token_hash"] != tokenHash {
		return nil, fmt.Errorf("email token not found: %w", domain.ErrNotFound)
	}
	return decodeToken(tokenHash, fields)
}

func (s *TokenStore) Consume(ctx context.Context, kind domain.TokenKind, tokenHash string, now time.Time) (*domain.EmailToken, error) {
	slot, err := s.slotFor(ctx, tokenHash)
	if err != nil {
		return nil, fmt.Errorf("redis token: consume: %w", err)
	}
	if slot == "" {
		return nil, domain.ErrInvalidToken
	}
	res, err := consumeLua.Run(ctx, s.client, []string{slot}, tokenHash, string(kind), now.UnixMilli()).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("redis token: consume: %w", err)
	}
	s.client.Del(ctx, s.indexKey(tokenHash))
	arr, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("redis token: unexpected result %T", res)
	}
	fields := make(map[string]string, len(arr)/2)
	for i := 0; i+1 < len(arr); i += 2 {
		k, _ := arr[i].(string)
		v, _ := arr[i+1].(string)
		fields[k] = v
	}
	return decodeToken(tokenHash, fields)
}

// DeleteExpired removes tokens whose expires_at is before now. Key expiry
// normally gets there first; this covers the grace period. On a cluster
// every master is swept.
func (s *TokenStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	var deleted atomic.Int64
	sweep := func(ctx context.Context, node goredis.Cmdable) error {
		n, err := s.sweep(ctx, node, now)
		deleted.Add(int64(n))
		return err
	}
	var err error
	if cc, ok := s.client.(*goredis.ClusterClient); ok {
		err = cc.ForEachMaster(ctx, func(ctx context.Context, node *goredis.Client) error {
			return sweep(ctx, node)
		})
	} else {
		err = sweep(ctx, s.client)
	}
	return int(deleted.Load()), err
}

func (s *TokenStore) sweep(ctx context.Context, node goredis.Cmdable, now time.Time) (int, error) {
	deleted := 0
	iter := node.Scan(ctx, 0, s.slotPrefix()+"*", 100).Iterator()
	for iter.Next(ctx) {
		vals, err := node.HMGet(ctx, iter.Val(), "expires_at", "token_hash").Result()
		if err != nil {
			return deleted, fmt.Errorf("redis token: read expiry: %w", err)
		}
		raw, _ := vals[0].(string)
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ms >= now.UnixMilli() {
			continue
		}
		n, err := node.Del(ctx, iter.Val()).Result()
		if err != nil {
			return deleted, fmt.Errorf("redis token: delete: %w", err)
		}
		if hash, _ := vals[1].(string); hash != "" {
			s.client.Del(ctx, s.indexKey(hash))
		}
		deleted += int(n)
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis token: scan: %w", err)
	}
	return deleted, nil
}

func decodeToken(hash string, fields map[string]string) (*domain.EmailToken, error) {
	exp, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis token: bad expires_at: %w", err)
	}
	created, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis token: bad created_at: %w", err)
	}
	return &domain.EmailToken{
		TokenHash: hash,
		Kind:      domain.TokenKind(fields["kind"]),
		UserID:    fields["user_id"],
		ExpiresAt: time.UnixMilli(exp).UTC(),
		CreatedAt: time.UnixMilli(created).UTC(),
	}, nil
}
