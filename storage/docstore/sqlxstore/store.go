package sqlxstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edumart/core"
)

var fieldNameRegex = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// row is one stored document.
type row struct {
	Collection string    `db:"collection"`
	ID         string    `db:"id"`
	Data       []byte    `db:"data"`
	Version    int64     `db:"version"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  null.Time `db:"updated_at"`
}

// Store is a core.DocumentStore on a Postgres `documents` table (JSONB data + version column).
// Transactions are optimistic: a write only succeeds if the version it read is still current.
type Store struct {
	db          *sqlx.DB
	maxAttempts int
}

var _ core.DocumentStore = (*Store)(nil) // interface compliance check

func New(db *sqlx.DB, maxAttempts int) *Store {
	return &Store{db: db, maxAttempts: maxAttempts}
}

// trapErr maps "no rows" to core.ErrDocNotFound and transport failures to core.ErrBackendUnavailable.
func trapErr(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Cause(err) == sql.ErrNoRows:
		return core.ErrDocNotFound
	}
	if _, ok := errors.Cause(err).(*pq.Error); ok {
		return errors.Wrap(err, msg)
	}
	return core.Unavailable(err, msg)
}

func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == "23505"
}

// uniqueErr tells a lost insert race on the primary key, which is worth retrying, from a
// taken unique field, which is not.
func uniqueErr(err error) error {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Constraint != "documents_pkey" {
		return errors.Wrap(core.ErrDuplicateKey, pqErr.Constraint)
	}
	return core.ErrTxConflict
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

func (r row) document() (core.Document, error) {
	var doc core.Document
	if err := json.Unmarshal(r.Data, &doc); err != nil {
		return nil, errors.Wrap(err, "decoding document")
	}
	return doc, nil
}

const selectRow = `SELECT collection, id, data, version, created_at, updated_at FROM documents`

func (s *Store) Get(ctx context.Context, collection, id string) (core.Document, error) {
	var r row
	if err := s.db.GetContext(ctx, &r, selectRow+` WHERE collection = $1 AND id = $2`, collection, id); err != nil {
		return nil, trapErr(err, "getting document")
	}
	return r.document()
}

func (s *Store) Set(ctx context.Context, collection, id string, doc core.Document) error {
	data, err := encode(id, doc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, id)
		DO UPDATE SET data = EXCLUDED.data, version = documents.version + 1, updated_at = now()`,
		collection, id, string(data))
	if isUniqueViolation(err) {
		return uniqueErr(err)
	}
	return trapErr(err, "setting document")
}

func (s *Store) Update(ctx context.Context, collection, id string, fields core.Document) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return errors.Wrap(err, "encoding fields")
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET data = data || $3::jsonb, version = version + 1, updated_at = now()
		WHERE collection = $1 AND id = $2`,
		collection, id, string(data))
	if isUniqueViolation(err) {
		return uniqueErr(err)
	}
	if err != nil {
		return trapErr(err, "updating document")
	}
	if n, err := res.RowsAffected(); err != nil {
		return trapErr(err, "updating document")
	} else if n == 0 {
		return core.ErrDocNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	return trapErr(err, "deleting document")
}

func (s *Store) Query(ctx context.Context, collection string, where ...core.Where) ([]core.Document, error) {
	q := selectRow + ` WHERE collection = $1`
	args := []interface{}{collection}
	for _, w := range where {
		if !fieldNameRegex.MatchString(w.Field) {
			return nil, errors.Errorf("invalid field name %q", w.Field)
		}
		args = append(args, w.Field, w.Text())
		q += ` AND data ->> $` + strconv.Itoa(len(args)-1) + ` = $` + strconv.Itoa(len(args))
	}
	q += ` ORDER BY id`

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, trapErr(err, "querying documents")
	}
	docs := make([]core.Document, 0, len(rows))
	for _, r := range rows {
		doc, err := r.document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Store) RunTransaction(ctx context.Context, fn core.TxFunc) error {
	return core.RetryTransaction(ctx, s.maxAttempts, func() error {
		sqlTx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return trapErr(err, "beginning transaction")
		}
		tx := &transaction{
			ctx:    ctx,
			tx:     sqlTx,
			reads:  make(map[docKey]int64),
			writes: make(map[docKey]core.Document),
		}
		if err = fn(tx); err == nil {
			err = tx.commit()
		}
		if err != nil {
			_ = sqlTx.Rollback()
			return err
		}
		return nil
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

type docKey struct {
	collection string
	id         string
}

type transaction struct {
	ctx    context.Context
	tx     *sqlx.Tx
	reads  map[docKey]int64 // version seen; 0 when absent
	writes map[docKey]core.Document
	order  []docKey
}

func (tx *transaction) Get(collection, id string) (core.Document, error) {
	k := docKey{collection, id}
	if doc, ok := tx.writes[k]; ok {
		return doc.Clone(), nil
	}

	var r row
	err := tx.tx.GetContext(tx.ctx, &r, selectRow+` WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		err = trapErr(err, "getting document")
		if err == core.ErrDocNotFound {
			if _, seen := tx.reads[k]; !seen {
				tx.reads[k] = 0
			}
		}
		return nil, err
	}
	if _, seen := tx.reads[k]; !seen {
		tx.reads[k] = r.Version
	}
	return r.document()
}

func (tx *transaction) Set(collection, id string, doc core.Document) {
	k := docKey{collection, id}
	if _, ok := tx.writes[k]; !ok {
		tx.order = append(tx.order, k)
	}
	tx.writes[k] = doc.Clone()
}

func (tx *transaction) commit() error {
	for _, k := range tx.order {
		data, err := encode(k.id, tx.writes[k])
		if err != nil {
			return err
		}

		version, read := tx.reads[k]
		var res sql.Result
		switch {
		case read && version == 0:
			res, err = tx.tx.ExecContext(tx.ctx,
				`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)`, k.collection, k.id, string(data))
		case read:
			res, err = tx.tx.ExecContext(tx.ctx, `
				UPDATE documents SET data = $3, version = version + 1, updated_at = now()
				WHERE collection = $1 AND id = $2 AND version = $4`,
				k.collection, k.id, string(data), version)
		default:
			res, err = tx.tx.ExecContext(tx.ctx, `
				INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)
				ON CONFLICT (collection, id)
				DO UPDATE SET data = EXCLUDED.data, version = documents.version + 1, updated_at = now()`,
				k.collection, k.id, string(data))
		}
		if isUniqueViolation(err) {
			return uniqueErr(err)
		}
		if err != nil {
			return trapErr(err, "writing document")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return trapErr(err, "writing document")
		}
		if n == 0 {
			return core.ErrTxConflict
		}
	}

	// read-only documents must not have changed either
	for k, version := range tx.reads {
		if _, written := tx.writes[k]; written {
			continue
		}
		var current int64
		err := tx.tx.GetContext(tx.ctx, &current, `SELECT version FROM documents WHERE collection = $1 AND id = $2`, k.collection, k.id)
		if err != nil && errors.Cause(err) != sql.ErrNoRows {
			return trapErr(err, "checking document version")
		}
		if current != version {
			return core.ErrTxConflict
		}
	}

	if err := tx.tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return uniqueErr(err)
		}
		return trapErr(err, "committing transaction")
	}
	return nil
}
