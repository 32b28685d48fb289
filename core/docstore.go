package core

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// DocIDField is set on every stored Document to the document's id.
const DocIDField = "id"

var (
	ErrDocNotFound  = errors.New("document not found")
	ErrTxConflict   = errors.New("transaction conflict")
	// ErrDuplicateKey is returned by a write that would give a unique field a value already taken.
	ErrDuplicateKey = errors.New("duplicate key")
)

type (
	// Document is a loosely-typed stored record. Domain packages coerce it into their typed schemas.
	Document map[string]interface{}

	// Where is an equality filter on a top-level Document field.
	Where struct {
		Field string
		Value interface{}
	}

	// Tx is the view of the store inside a transaction.
	// Reads are tracked; the commit fails with ErrTxConflict if any of them changed meanwhile.
	Tx interface {
		Get(collection, id string) (Document, error)
		Set(collection, id string, doc Document)
	}

	// TxFunc reads the current state and computes the next one.
	// It may be invoked several times and must be free of side effects.
	TxFunc func(tx Tx) error

	DocumentStore interface {
		Get(ctx context.Context, collection, id string) (Document, error)
		// Set creates or replaces a Document.
		Set(ctx context.Context, collection, id string, doc Document) error
		// Update merges fields into an existing Document.
		Update(ctx context.Context, collection, id string, fields Document) error
		Delete(ctx context.Context, collection, id string) error
		// Query returns the Documents matching all the filters.
		Query(ctx context.Context, collection string, where ...Where) ([]Document, error)
		// RunTransaction runs fn atomically, re-invoking it on write conflicts.
		RunTransaction(ctx context.Context, fn TxFunc) error
		Close() error
	}
)

func Eq(field string, value interface{}) Where {
	return Where{Field: field, Value: value}
}

// Text is the canonical string form of a filter value, as compared by every store.
func (w Where) Text() string {
	return ValueText(w.Value)
}

// ValueText renders scalars the way JSON renders them.
func ValueText(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// RetryTransaction calls attempt until it succeeds, fails with anything but ErrTxConflict,
// or maxAttempts is reached.
func RetryTransaction(ctx context.Context, maxAttempts int, attempt func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var err error
	for i := 0; i < maxAttempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrap(ctxErr, "running transaction")
		}
		if err = attempt(); err == nil || !errors.Is(err, ErrTxConflict) {
			return err
		}
	}
	return errors.Wrapf(err, "giving up after %d attempts", maxAttempts)
}

// Document accessors. They accept the representations produced by JSON decoding
// as well as the native Go values a caller may have stored.

func (d Document) ID() string { return d.GetString(DocIDField) }

func (d Document) Has(key string) bool {
	v, ok := d[key]
	return ok && v != nil
}

func (d Document) GetString(key string) string {
	switch v := d[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return ValueText(v)
	}
}

// Float returns the numeric value at key; strings holding numbers are parsed.
func (d Document) GetFloat(key string) (float64, bool) {
	switch v := d[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(CleanString(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func (d Document) GetInt(key string) (int64, bool) {
	switch v := d[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	}
	f, ok := d.GetFloat(key)
	if !ok || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}

func (d Document) GetBool(key string) bool {
	switch v := d[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

func (d Document) GetTime(key string) time.Time {
	switch v := d[key].(type) {
	case time.Time:
		return v.UTC()
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Clone returns a shallow copy of d.
func (d Document) Clone() Document {
	c := make(Document, len(d))
	for k, v := range d {
		c[k] = v
	}
	return c
}
