package storage

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edumart/core"
	"github.com/trezcool/edumart/core/account"
	logsvc "github.com/trezcool/edumart/services/logger"
	inmemstore "github.com/trezcool/edumart/storage/docstore/inmem"
)

func TestOpenDocumentStore(t *testing.T) {
	conf := &core.Config{Storage: core.StorageConfig{Backend: BackendMemory, MaxTxAttempts: 3}}
	store, err := OpenDocumentStore(conf)
	require.NoError(t, err)
	assert.IsType(t, &inmemstore.Store{}, store)

	conf.Storage.Backend = "mongo"
	_, err = OpenDocumentStore(conf)
	assert.EqualError(t, err, `unknown storage backend "mongo"`)
}

func TestNewCounterStore(t *testing.T) {
	ctx := context.Background()
	store := inmemstore.New(3)
	conf := &core.Config{Storage: core.StorageConfig{MaxTxAttempts: 3}}

	counters, err := NewCounterStore(conf, store, logsvc.NewNopLogger())
	require.NoError(t, err)
	defer counters.Close()
	assert.IsType(t, docCounters{}, counters, "without redis the counters live in the document store")

	first, err := counters.Increment(ctx, "ASH")
	require.NoError(t, err)
	second, err := counters.Increment(ctx, "ASH")
	require.NoError(t, err)
	assert.Equal(t, first+1, second)
}

func TestNewCounterStore_unreachableRedis(t *testing.T) {
	conf := &core.Config{
		Storage: core.StorageConfig{MaxTxAttempts: 3},
		Redis:   core.RedisConfig{Address: "127.0.0.1:1"},
	}
	counters, err := NewCounterStore(conf, inmemstore.New(3), logsvc.NewNopLogger())
	require.Error(t, err, "counting in the document store instead would reissue identifiers")
	assert.Nil(t, counters)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}

func TestNewMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(&core.Config{Storage: core.StorageConfig{MaxTxAttempts: 3}})

	require.NoError(t, store.Set(ctx, account.Collection, "u1", core.Document{account.UniqueIDField: "ISPASH001"}))
	err := store.Set(ctx, account.Collection, "u2", core.Document{account.UniqueIDField: "ISPASH001"})
	assert.True(t, errors.Is(err, core.ErrDuplicateKey), "got %v", err)
	require.NoError(t, store.Set(ctx, account.Collection, "u1", core.Document{account.UniqueIDField: "ISPASH001", "phone": "1"}),
		"a document keeps its own value")
}
