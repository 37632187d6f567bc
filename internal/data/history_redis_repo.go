package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/qlora-pipeline/controlplane/internal/core"
	"github.com/qlora-pipeline/controlplane/internal/domain/model"
	apperrors "github.com/qlora-pipeline/controlplane/internal/errors"
)

const (
	defaultHistoryKeyPrefix = "qlora:history"
	redisHistoryScanBatch   = 100
)

// RedisHistoryRepoConfig configures RedisHistoryRepo.
type RedisHistoryRepoConfig struct {
	// KeyPrefix namespaces the entry and index keys. Defaults to "qlora:history".
	KeyPrefix string
	// TTL expires archived entries. Zero keeps them until pruned.
	TTL time.Duration
}

// RedisHistoryRepo archives terminal jobs as JSON documents in Redis. A sorted set
// scored by finish time indexes the entries.
type RedisHistoryRepo struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ core.JobHistoryRepository = (*RedisHistoryRepo)(nil)

// NewRedisHistoryRepo creates a Redis history repository.
func NewRedisHistoryRepo(client redis.UniversalClient, cfg RedisHistoryRepoConfig) *RedisHistoryRepo {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultHistoryKeyPrefix
	}
	return &RedisHistoryRepo{client: client, prefix: prefix, ttl: cfg.TTL}
}

func (r *RedisHistoryRepo) entryKey(jobID string) string { return r.prefix + ":job:" + jobID }
func (r *RedisHistoryRepo) indexKey() string             { return r.prefix + ":index" }

// Record stores entry and indexes it by finish time.
func (r *RedisHistoryRepo) Record(ctx context.Context, entry *model.HistoryEntry) error {
	if entry == nil || entry.JobID == "" {
		return ErrJobIDRequired
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode job history %s: %w", entry.JobID, err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.entryKey(entry.JobID), payload, r.ttl)
		pipe.ZAdd(ctx, r.indexKey(), redis.Z{
			Score:  float64(entry.FinishedAt.UnixMilli()),
			Member: entry.JobID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("record job history %s: %w", entry.JobID, apperrors.MapDBError(err))
	}
	return nil
}

// List returns archived jobs, most recently finished first. Index members whose
// entry has expired are dropped from the index as they are encountered.
func (r *RedisHistoryRepo) List(ctx context.Context, opts model.HistoryListOptions) ([]*model.HistoryEntry, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var (
		out     []*model.HistoryEntry
		skipped int
		cursor  int64
	)
	for opts.Limit <= 0 || len(out) < opts.Limit {
		ids, err := r.client.ZRevRange(ctx, r.indexKey(), cursor, cursor+redisHistoryScanBatch-1).Result()
		if err != nil {
			return nil, fmt.Errorf("list job history: %w", apperrors.MapDBError(err))
		}
		if len(ids) == 0 {
			break
		}
		cursor += int64(len(ids))

		entries, stale, err := r.fetch(ctx, ids)
		if err != nil {
			return nil, err
		}
		if len(stale) > 0 {
			r.client.ZRem(ctx, r.indexKey(), stale...)
			cursor -= int64(len(stale))
		}

		for _, e := range entries {
			if !matchesHistoryFilter(e, opts) {
				continue
			}
			if skipped < opts.Offset {
				skipped++
				continue
			}
			out = append(out, e)
			if opts.Limit > 0 && len(out) == opts.Limit {
				break
			}
		}
	}
	return out, nil
}

func (r *RedisHistoryRepo) fetch(ctx context.Context, ids []string) ([]*model.HistoryEntry, []any, error) {
	cmds := make([]*redis.StringCmd, len(ids))
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.Get(ctx, r.entryKey(id))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, nil, fmt.Errorf("fetch job history: %w", apperrors.MapDBError(err))
	}

	entries := make([]*model.HistoryEntry, 0, len(ids))
	var stale []any
	for i, cmd := range cmds {
		raw, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			stale = append(stale, ids[i])
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("fetch job history %s: %w", ids[i], apperrors.MapDBError(err))
		}
		var e model.HistoryEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, nil, fmt.Errorf("decode job history %s: %w", ids[i], err)
		}
		entries = append(entries, &e)
	}
	return entries, stale, nil
}

// DeleteBefore removes entries that finished before cutoff.
func (r *RedisHistoryRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ids, err := r.client.ZRangeByScore(ctx, r.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("prune job history: %w", apperrors.MapDBError(err))
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	members := make([]any, len(ids))
	for i, id := range ids {
		keys[i] = r.entryKey(id)
		members[i] = id
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, r.indexKey(), members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune job history: %w", apperrors.MapDBError(err))
	}
	return int64(len(ids)), nil
}

func matchesHistoryFilter(e *model.HistoryEntry, opts model.HistoryListOptions) bool {
	if opts.Kind != "" && e.Kind != opts.Kind {
		return false
	}
	if opts.Status != "" && e.Status != opts.Status {
		return false
	}
	return true
}
