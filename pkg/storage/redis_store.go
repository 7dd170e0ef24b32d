package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	redis "github.com/redis/go-redis/v9"

	"github.com/frontierx/nftmarket/pkg/market"
)

// RedisStore keeps fill counters and approvals in Redis, for
// deployments that share replay-protection state across nodes. Trade
// history stays local (pebble); this store covers only the small
// hot-path keys.
type RedisStore struct {
	cli *redis.Client
}

func NewRedisStore(addr string) (*RedisStore, error) {
	cli := redis.NewClient(&redis.Options{Addr: addr})
	if err := cli.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{cli: cli}, nil
}

func (s *RedisStore) Close() error { return s.cli.Close() }

func (s *RedisStore) Fill(hash common.Hash) (uint64, error) {
	val, err := s.cli.Get(context.Background(), redisFillKey(hash)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get fill: %w", err)
	}
	level, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad fill value %q: %w", val, err)
	}
	return level, nil
}

func (s *RedisStore) SetFills(levels map[common.Hash]uint64) error {
	ctx := context.Background()
	pipe := s.cli.TxPipeline()
	for hash, level := range levels {
		pipe.Set(ctx, redisFillKey(hash), strconv.FormatUint(level, 10), 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set fills: %w", err)
	}
	return nil
}

func (s *RedisStore) Approved(hash common.Hash) (bool, error) {
	n, err := s.cli.Exists(context.Background(), redisApprovalKey(hash)).Result()
	if err != nil {
		return false, fmt.Errorf("redis approval: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Approve(hash common.Hash) error {
	if err := s.cli.Set(context.Background(), redisApprovalKey(hash), "1", 0).Err(); err != nil {
		return fmt.Errorf("redis approve: %w", err)
	}
	return nil
}

func redisFillKey(hash common.Hash) string     { return prefixFill + hash.Hex() }
func redisApprovalKey(hash common.Hash) string { return prefixApproval + hash.Hex() }

var (
	_ market.FillStore     = (*RedisStore)(nil)
	_ market.ApprovalStore = (*RedisStore)(nil)
)
