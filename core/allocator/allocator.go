// Package allocator issues the human-readable account identifiers: a prefix, a 3-letter
// name part and a per-name-part serial (e.g. ISPPRA007).
package allocator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
	"unicode"

	"github.com/trezcool/edumart/core"
	"github.com/trezcool/edumart/core/metrics"
)

const namePartLen = 3

type (
	// CounterStore atomically increments the counter stored under key and returns its new value.
	// An absent counter starts at 1. Two concurrent calls for the same key never return the same value.
	CounterStore interface {
		Increment(ctx context.Context, key string) (int64, error)
	}

	Identifier struct {
		Value string
		// Degraded is set when the counter could not be reached and the serial is random.
		// Such an identifier is not guaranteed to be unique.
		Degraded bool
	}

	Allocator struct {
		counters CounterStore
		prefix   string
		fallback string
		log      core.Logger
		metrics  *metrics.Metrics

		rndMu sync.Mutex
		rnd   *rand.Rand
	}
)

func New(counters CounterStore, conf *core.Config, logger core.Logger, m *metrics.Metrics) *Allocator {
	return &Allocator{
		counters: counters,
		prefix:   conf.IDPrefix,
		fallback: NamePart(conf.IDFallbackToken, "USR"),
		log:      logger,
		metrics:  m,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NamePart returns the first 3 letters of name, upper-cased and right-padded with X.
// fallback is returned when name holds no letter.
func NamePart(name, fallback string) string {
	letters := make([]rune, 0, namePartLen)
	for _, r := range name {
		if len(letters) == namePartLen {
			break
		}
		if unicode.IsLetter(r) {
			letters = append(letters, unicode.ToUpper(r))
		}
	}
	if len(letters) == 0 {
		return fallback
	}
	for len(letters) < namePartLen {
		letters = append(letters, 'X')
	}
	return string(letters)
}

// Format renders an identifier; serials below 1000 are zero-padded to 3 digits.
func Format(prefix, namePart string, serial int64) string {
	return fmt.Sprintf("%s%s%03d", prefix, namePart, serial)
}

// Allocate issues the next identifier for displayName.
// It never fails: when the counter store is unavailable it returns a Degraded identifier.
func (a *Allocator) Allocate(ctx context.Context, displayName string) Identifier {
	part := NamePart(displayName, a.fallback)

	serial, err := a.counters.Increment(ctx, part)
	if err == nil {
		a.metrics.Allocated(false)
		return Identifier{Value: Format(a.prefix, part, serial)}
	}

	id := Identifier{Value: Format(a.prefix, part, a.randomSerial()), Degraded: true}
	a.log.Warn("allocator: counter unavailable, issued degraded identifier", err, map[string]interface{}{
		"namePart":   part,
		"identifier": id.Value,
	})
	a.metrics.Allocated(true)
	return id
}

func (a *Allocator) randomSerial() int64 {
	a.rndMu.Lock()
	defer a.rndMu.Unlock()
	return int64(a.rnd.Intn(1000))
}
