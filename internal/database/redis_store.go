package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/isdelr/schedpanel/internal/models"
)

// RedisEventStore keeps scheduler events in Redis. Ids come from an INCR counter, events are
// members of a sorted set scored by id and a second sorted set indexes ids by date.
type RedisEventStore struct {
	client *redis.Client
	prefix string
}

func NewRedisEventStore(client *redis.Client, prefix string) *RedisEventStore {
	if prefix == "" {
		prefix = "schedpanel"
	}
	return &RedisEventStore{client: client, prefix: prefix}
}

func (s *RedisEventStore) seqKey() string    { return s.prefix + ":events:seq" }
func (s *RedisEventStore) byIDKey() string   { return s.prefix + ":events:by_id" }
func (s *RedisEventStore) byDateKey() string { return s.prefix + ":events:by_date" }

func (s *RedisEventStore) Append(ctx context.Context, e models.Event) (int64, error) {
	id, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	e.ID = id
	payload, err := json.Marshal(e)
	if err != nil {
		return 0, fmt.Errorf("encode event: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, s.byIDKey(), redis.Z{Score: float64(id), Member: payload})
	pipe.ZAdd(ctx, s.byDateKey(), redis.Z{Score: float64(e.Date), Member: strconv.FormatInt(id, 10)})
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis pipeline: %w", err)
	}
	return id, nil
}

func (s *RedisEventStore) ListFrom(ctx context.Context, fromID int64, cutoff int64) ([]models.Event, error) {
	members, err := s.client.ZRangeByScore(ctx, s.byIDKey(), &redis.ZRangeBy{
		Min: strconv.FormatInt(fromID, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis range: %w", err)
	}

	events := make([]models.Event, 0, len(members))
	for _, m := range members {
		var e models.Event
		if err := json.Unmarshal([]byte(m), &e); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		if e.Date > cutoff {
			events = append(events, e)
		}
	}
	return events, nil
}

func (s *RedisEventStore) EvictOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.byDateKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis range: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.client.TxPipeline()
	for _, id := range ids {
		pipe.ZRemRangeByScore(ctx, s.byIDKey(), id, id)
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	pipe.ZRem(ctx, s.byDateKey(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis pipeline: %w", err)
	}
	return int64(len(ids)), nil
}

// EvictOverCapacity deletes all but the newest max events. Removal is bounded by the highest
// id read so events appended in between survive.
func (s *RedisEventStore) EvictOverCapacity(ctx context.Context, max int) (int64, error) {
	if max <= 0 {
		return 0, fmt.Errorf("redis evict: capacity %d must be positive", max)
	}
	old, err := s.client.ZRangeWithScores(ctx, s.byIDKey(), 0, int64(-(max + 1))).Result()
	if err != nil {
		return 0, fmt.Errorf("redis range: %w", err)
	}
	if len(old) == 0 {
		return 0, nil
	}

	members := make([]interface{}, len(old))
	for i, z := range old {
		members[i] = strconv.FormatInt(int64(z.Score), 10)
	}
	last := strconv.FormatInt(int64(old[len(old)-1].Score), 10)

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, s.byIDKey(), "-inf", last)
	pipe.ZRem(ctx, s.byDateKey(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis pipeline: %w", err)
	}
	return int64(len(old)), nil
}
