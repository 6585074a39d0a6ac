package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepo keeps transcripts in a Redis list per call so they survive a
// process restart and can be shared by multiple API instances. Entries are
// JSON-encoded; append order is the list order.
type RedisRepo struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisRepo(rdb *redis.Client, ttl time.Duration) *RedisRepo {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisRepo{rdb: rdb, ttl: ttl}
}

func key(callID string) string { return "transcript:" + callID }

func (r *RedisRepo) Append(ctx context.Context, callID string, e Entry) error {
	if callID == "" {
		return errors.New("transcript: call id is required")
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("transcript: encode entry: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.RPush(ctx, key(callID), raw)
	pipe.Expire(ctx, key(callID), r.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisRepo) Get(ctx context.Context, callID string) ([]Entry, error) {
	raws, err := r.rdb.LRange(ctx, key(callID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(raws) == 0 {
		return nil, ErrNoTranscript
	}

	out := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("transcript: decode entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *RedisRepo) Clear(ctx context.Context, callID string) error {
	return r.rdb.Del(ctx, key(callID)).Err()
}
