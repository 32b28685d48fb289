// Package storage selects the storage backends named by the configuration.
package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edumart/core"
	"github.com/trezcool/edumart/core/account"
	"github.com/trezcool/edumart/core/allocator"
	"github.com/trezcool/edumart/storage/database"
	inmemstore "github.com/trezcool/edumart/storage/docstore/inmem"
	"github.com/trezcool/edumart/storage/docstore/sqlxstore"
	redisstore "github.com/trezcool/edumart/storage/redis"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// OpenDocumentStore opens the document store of conf.Storage.Backend.
// The postgres database is created and migrated when needed; its migrations declare the
// unique fields that NewMemoryStore declares in memory.
func OpenDocumentStore(conf *core.Config) (core.DocumentStore, error) {
	switch conf.Storage.Backend {
	case BackendMemory, "":
		return NewMemoryStore(conf), nil
	case BackendPostgres:
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		return sqlxstore.New(db, conf.Storage.MaxTxAttempts), nil
	}
	return nil, errors.Errorf("unknown storage backend %q", conf.Storage.Backend)
}

// NewMemoryStore returns an in-memory document store keeping account unique ids unique.
func NewMemoryStore(conf *core.Config) *inmemstore.Store {
	store := inmemstore.New(conf.Storage.MaxTxAttempts)
	store.UniqueField(account.Collection, account.UniqueIDField)
	return store
}

// CounterStore is an allocator.CounterStore that must be closed.
type CounterStore interface {
	allocator.CounterStore
	Close() error
}

type docCounters struct{ *allocator.DocCounterStore }

func (docCounters) Close() error { return nil }

// NewCounterStore keeps the identifier counters in Redis when it is configured, else in the
// document store. Only one of them ever holds the counters: a configured Redis that cannot be
// reached fails startup, since counting elsewhere would reissue identifiers.
func NewCounterStore(conf *core.Config, store core.DocumentStore, logger core.Logger) (CounterStore, error) {
	if conf.Redis.Address == "" {
		return docCounters{allocator.NewDocCounterStore(store)}, nil
	}

	counters := redisstore.NewCounterStore(redisstore.NewClient(conf), conf.Storage.MaxTxAttempts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := counters.Ping(ctx); err != nil {
		_ = counters.Close()
		return nil, errors.Wrapf(err, "reaching redis at %s", conf.Redis.Address)
	}
	logger.Info("identifier counters kept in redis", map[string]interface{}{"address": conf.Redis.Address})
	return counters, nil
}
