package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arbdesk/cedearmon/internal/domain"
)

// ForeignCache implements domain.ForeignCache using Redis hashes. Each
// symbol is stored at "foreign:{symbol}" with fields "price", "change" and
// "ts" (Unix nanoseconds), expiring together via a key TTL.
type ForeignCache struct {
	rdb *redis.Client
}

var _ domain.ForeignCache = (*ForeignCache)(nil)

// NewForeignCache creates a ForeignCache backed by the given Client.
func NewForeignCache(c *Client) *ForeignCache {
	return &ForeignCache{rdb: c.Underlying()}
}

func foreignKey(symbol string) string {
	return "foreign:" + symbol
}

// Set stores a snapshot with the given TTL.
func (fc *ForeignCache) Set(ctx context.Context, snap domain.ForeignSnapshot, ttl time.Duration) error {
	key := foreignKey(snap.Ticker)
	fields := map[string]interface{}{
		"price":  strconv.FormatFloat(snap.Price, 'f', -1, 64),
		"change": strconv.FormatFloat(snap.ChangePct, 'f', -1, 64),
		"ts":     strconv.FormatInt(snap.Timestamp.UnixNano(), 10),
	}

	pipe := fc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set foreign %s: %w", snap.Ticker, err)
	}
	return nil
}

// Get retrieves a cached snapshot. It returns domain.ErrNotFound when the
// key is missing or expired.
func (fc *ForeignCache) Get(ctx context.Context, symbol string) (domain.ForeignSnapshot, error) {
	vals, err := fc.rdb.HGetAll(ctx, foreignKey(symbol)).Result()
	if err != nil {
		return domain.ForeignSnapshot{}, fmt.Errorf("redis: get foreign %s: %w", symbol, err)
	}
	if len(vals) == 0 {
		return domain.ForeignSnapshot{}, domain.ErrNotFound
	}

	price, err := strconv.ParseFloat(vals["price"], 64)
	if err != nil {
		return domain.ForeignSnapshot{}, fmt.Errorf("redis: parse foreign price %s: %w", symbol, err)
	}
	change, err := strconv.ParseFloat(vals["change"], 64)
	if err != nil {
		return domain.ForeignSnapshot{}, fmt.Errorf("redis: parse foreign change %s: %w", symbol, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.ForeignSnapshot{}, fmt.Errorf("redis: parse foreign ts %s: %w", symbol, err)
	}

	return domain.ForeignSnapshot{
		Ticker:    symbol,
		Price:     price,
		ChangePct: change,
		Timestamp: time.Unix(0, tsNano),
	}, nil
}
