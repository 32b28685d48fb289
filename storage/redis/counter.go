// Package redisstore keeps identifier counters in Redis.
package redisstore

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/edumart/core"
	"github.com/trezcool/edumart/core/allocator"
)

const keyPrefix = "edumart:counters:"

// CounterStore increments counters with an optimistic WATCH/MULTI transaction,
// retried when another client wrote the key in between.
type CounterStore struct {
	client      *redis.Client
	maxAttempts int
}

var _ allocator.CounterStore = (*CounterStore)(nil)

func NewClient(conf *core.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
	})
}

func NewCounterStore(client *redis.Client, maxAttempts int) *CounterStore {
	return &CounterStore{client: client, maxAttempts: maxAttempts}
}

func (s *CounterStore) Increment(ctx context.Context, key string) (int64, error) {
	k := keyPrefix + key
	var next int64

	txf := func(tx *redis.Tx) error {
		count, err := tx.Get(ctx, k).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		next = count + 1
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, next, 0)
			return nil
		})
		return err
	}

	err := core.RetryTransaction(ctx, s.maxAttempts, func() error {
		switch err := s.client.Watch(ctx, txf, k); err {
		case nil:
			return nil
		case redis.TxFailedErr:
			return core.ErrTxConflict
		default:
			return core.Unavailable(err, "watching counter")
		}
	})
	if err != nil {
		return 0, errors.Wrapf(err, "incrementing counter %q", key)
	}
	return next, nil
}

// Ping reports whether the server is reachable.
func (s *CounterStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return core.Unavailable(err, "pinging redis")
	}
	return nil
}

func (s *CounterStore) Close() error {
	return s.client.Close()
}
