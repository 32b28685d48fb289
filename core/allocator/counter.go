package allocator

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/edumart/core"
)

// CountersCollection holds one document per name part: {namespaceKey, count}.
const CountersCollection = "counters"

// DocCounterStore keeps counters in a core.DocumentStore and increments them in a transaction,
// which the store re-runs on conflicting writes.
type DocCounterStore struct {
	store core.DocumentStore
}

var _ CounterStore = (*DocCounterStore)(nil)

func NewDocCounterStore(store core.DocumentStore) *DocCounterStore {
	return &DocCounterStore{store: store}
}

func (s *DocCounterStore) Increment(ctx context.Context, key string) (int64, error) {
	var next int64
	err := s.store.RunTransaction(ctx, func(tx core.Tx) error {
		doc, err := tx.Get(CountersCollection, key)
		switch {
		case errors.Is(err, core.ErrDocNotFound):
			next = 1
		case err != nil:
			return err
		default:
			count, ok := doc.GetInt("count")
			if !ok || count < 0 {
				return errors.Wrapf(core.ErrMalformedRecord, "counter %q", key)
			}
			next = count + 1
		}
		tx.Set(CountersCollection, key, core.Document{"namespaceKey": key, "count": next})
		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "incrementing counter %q", key)
	}
	return next, nil
}
