package matchcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/spigell/talent-matcher/internal/records"
)

const (
	redisTxRetries = 5
	redisLoadChunk = 500
)

// RedisBackend keeps every record as a JSON value under <prefix>:match:<candidate>:<job> and tracks
// the keys in the <prefix>:matches set.
type RedisBackend struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisBackend(rdb *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "tm"
	}
	return &RedisBackend{rdb: rdb, prefix: prefix}
}

func (b *RedisBackend) recordKey(key records.Key) string {
	return fmt.Sprintf("%s:match:%s:%s", b.prefix, key.CandidateID, key.JobID)
}

func (b *RedisBackend) indexKey() string {
	return b.prefix + ":matches"
}

// Save writes rec inside an optimistic transaction that aborts when the stored generation is not
// older.
func (b *RedisBackend) Save(ctx context.Context, rec *records.MatchRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal match: %w", err)
	}
	key := b.recordKey(rec.Key())

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var cur records.MatchRecord
			if json.Unmarshal(raw, &cur) == nil && cur.Generation >= rec.Generation {
				return ErrStaleGeneration
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, b.indexKey(), key)
			return nil
		})
		return err
	}

	for i := 0; i < redisTxRetries; i++ {
		err = b.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("save match %s: %w", rec.Key(), err)
	}
	return nil
}

// Delete removes the records and their index entries.
func (b *RedisBackend) Delete(ctx context.Context, keys ...records.Key) error {
	if len(keys) == 0 {
		return nil
	}
	redisKeys := make([]string, 0, len(keys))
	members := make([]any, 0, len(keys))
	for _, key := range keys {
		k := b.recordKey(key)
		redisKeys = append(redisKeys, k)
		members = append(members, k)
	}

	_, err := b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisKeys...)
		pipe.SRem(ctx, b.indexKey(), members...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete matches: %w", err)
	}
	return nil
}

// Load reads every indexed record. Index entries whose value disappeared are skipped.
func (b *RedisBackend) Load(ctx context.Context) ([]*records.MatchRecord, error) {
	keys, err := b.rdb.SMembers(ctx, b.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}

	var out []*records.MatchRecord
	for start := 0; start < len(keys); start += redisLoadChunk {
		end := min(start+redisLoadChunk, len(keys))
		values, err := b.rdb.MGet(ctx, keys[start:end]...).Result()
		if err != nil {
			return nil, fmt.Errorf("load matches: %w", err)
		}
		for i, v := range values {
			s, ok := v.(string)
			if !ok {
				continue
			}
			var rec records.MatchRecord
			if err := json.Unmarshal([]byte(s), &rec); err != nil {
				return nil, fmt.Errorf("decode %s: %w", keys[start+i], err)
			}
			out = append(out, &rec)
		}
	}
	return out, nil
}
