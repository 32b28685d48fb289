package inmemstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/edumart/core"
)

// Op names an operation for fault injection.
type Op string

const (
	OpGet    Op = "get"
	OpSet    Op = "set"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpQuery  Op = "query"
	OpTx     Op = "tx"
)

// FaultFunc returns a non-nil error to make the given operation fail.
type FaultFunc func(op Op, collection, id string) error

type (
	entry struct {
		data    []byte
		version int64
	}

	table map[string]entry

	docKey struct {
		collection string
		id         string
	}

	// Store is an in-memory core.DocumentStore with optimistic transactions.
	// Documents are kept JSON-encoded so callers never share memory with the store
	// and read back the same loose types a real document backend returns.
	Store struct {
		mu          sync.RWMutex
		tables      map[string]table
		maxAttempts int
		unique      map[string][]string // collection -> unique fields

		faultMu sync.RWMutex
		fault   FaultFunc
	}
)

var _ core.DocumentStore = (*Store)(nil) // interface compliance check

func New(maxAttempts int) *Store {
	return &Store{
		tables:      make(map[string]table),
		maxAttempts: maxAttempts,
		unique:      make(map[string][]string),
	}
}

// UniqueField makes every write to collection fail with core.ErrDuplicateKey when the
// non-empty value of field is already held by another document.
func (s *Store) UniqueField(collection, field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unique[collection] = append(s.unique[collection], field)
}

// checkUnique must be called with s.mu held.
func (s *Store) checkUnique(collection, id string, doc core.Document) error {
	for _, field := range s.unique[collection] {
		want := core.ValueText(doc[field])
		if want == "" {
			continue
		}
		for other, e := range s.tables[collection] {
			if other == id {
				continue
			}
			stored, err := decode(e.data)
			if err != nil {
				return err
			}
			if core.ValueText(stored[field]) == want {
				return errors.Wrapf(core.ErrDuplicateKey, "%s.%s %q", collection, field, want)
			}
		}
	}
	return nil
}

// InjectFault installs fn to simulate backend failures; nil removes it.
func (s *Store) InjectFault(fn FaultFunc) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.fault = fn
}

func (s *Store) checkFault(op Op, collection, id string) error {
	s.faultMu.RLock()
	fn := s.fault
	s.faultMu.RUnlock()
	if fn == nil {
		return nil
	}
	if err := fn(op, collection, id); err != nil {
		return core.Unavailable(err, string(op)+" "+collection)
	}
	return nil
}

func encode(id string, doc core.Document) ([]byte, error) {
	d := doc.Clone()
	d[core.DocIDField] = id
	data, err := json.Marshal(d)
	if err != nil {
		return nil, errors.Wrap(err, "encoding document")
	}
	return data, nil
}

func decode(data []byte) (core.Document, error) {
	var doc core.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decoding document")
	}
	return doc, nil
}

func (s *Store) table(collection string) table {
	t, ok := s.tables[collection]
	if !ok {
		t = make(table)
		s.tables[collection] = t
	}
	return t
}

func (s *Store) Get(_ context.Context, collection, id string) (core.Document, error) {
	if err := s.checkFault(OpGet, collection, id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.tables[collection][id]
	if !ok {
		return nil, core.ErrDocNotFound
	}
	return decode(e.data)
}

func (s *Store) Set(_ context.Context, collection, id string, doc core.Document) error {
	if err := s.checkFault(OpSet, collection, id); err != nil {
		return err
	}
	data, err := encode(id, doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.checkUnique(collection, id, doc); err != nil {
		return err
	}
	t := s.table(collection)
	t[id] = entry{data: data, version: t[id].version + 1}
	return nil
}

func (s *Store) Update(_ context.Context, collection, id string, fields core.Document) error {
	if err := s.checkFault(OpUpdate, collection, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(collection)
	e, ok := t[id]
	if !ok {
		return core.ErrDocNotFound
	}
	doc, err := decode(e.data)
	if err != nil {
		return err
	}
	for k, v := range fields {
		doc[k] = v
	}
	if err = s.checkUnique(collection, id, doc); err != nil {
		return err
	}
	data, err := encode(id, doc)
	if err != nil {
		return err
	}
	t[id] = entry{data: data, version: e.version + 1}
	return nil
}

func (s *Store) Delete(_ context.Context, collection, id string) error {
	if err := s.checkFault(OpDelete, collection, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.table(collection), id)
	return nil
}

func (s *Store) Query(_ context.Context, collection string, where ...core.Where) ([]core.Document, error) {
	if err := s.checkFault(OpQuery, collection, ""); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := s.tables[collection]
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([]core.Document, 0)
	for _, id := range ids {
		doc, err := decode(t[id].data)
		if err != nil {
			return nil, err
		}
		if matches(doc, where) {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func matches(doc core.Document, where []core.Where) bool {
	for _, w := range where {
		if core.ValueText(doc[w.Field]) != w.Text() {
			return false
		}
	}
	return true
}

func (s *Store) RunTransaction(ctx context.Context, fn core.TxFunc) error {
	return core.RetryTransaction(ctx, s.maxAttempts, func() error {
		if err := s.checkFault(OpTx, "", ""); err != nil {
			return err
		}
		tx := &transaction{
			store:  s,
			reads:  make(map[docKey]int64),
			writes: make(map[docKey]core.Document),
		}
		if err := fn(tx); err != nil {
			return err
		}
		return s.commit(tx)
	})
}

func (s *Store) commit(tx *transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, version := range tx.reads {
		if s.tables[k.collection][k.id].version != version {
			return core.ErrTxConflict
		}
	}
	for _, k := range tx.order {
		if err := s.checkUnique(k.collection, k.id, tx.writes[k]); err != nil {
			return err
		}
	}
	for _, k := range tx.order {
		data, err := encode(k.id, tx.writes[k])
		if err != nil {
			return err
		}
		t := s.table(k.collection)
		t[k.id] = entry{data: data, version: t[k.id].version + 1}
	}
	return nil
}

func (s *Store) Close() error { return nil }

type transaction struct {
	store  *Store
	reads  map[docKey]int64 // version seen; 0 when absent
	writes map[docKey]core.Document
	order  []docKey
}

func (tx *transaction) Get(collection, id string) (core.Document, error) {
	k := docKey{collection, id}
	if doc, ok := tx.writes[k]; ok {
		return doc.Clone(), nil
	}

	tx.store.mu.RLock()
	e, ok := tx.store.tables[collection][id]
	tx.store.mu.RUnlock()

	if _, seen := tx.reads[k]; !seen {
		tx.reads[k] = e.version
	}
	if !ok {
		return nil, core.ErrDocNotFound
	}
	return decode(e.data)
}

func (tx *transaction) Set(collection, id string, doc core.Document) {
	k := docKey{collection, id}
	if _, ok := tx.writes[k]; !ok {
		tx.order = append(tx.order, k)
	}
	tx.writes[k] = doc.Clone()
}
