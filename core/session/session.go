// Package session holds the per-principal state of a signed-in user: the identity, the
// resolved role state and the cart.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/edumart/core"
	"github.com/trezcool/edumart/core/pricing"
	"github.com/trezcool/edumart/core/role"
)

var ErrNotFound = errors.New("session not found or expired")

// Session is safe for concurrent use; every mutation goes through its lock.
type Session struct {
	id        string
	identity  core.Identity
	accountID string
	createdAt time.Time

	mu        sync.RWMutex
	decision  role.Decision
	cart      *pricing.Selection
	expiresAt time.Time // zero: never
}

func (s *Session) ID() string              { return s.id }
func (s *Session) Identity() core.Identity { return s.identity }
func (s *Session) AccountID() string       { return s.accountID }
func (s *Session) CreatedAt() time.Time    { return s.createdAt }

func (s *Session) Decision() role.Decision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decision
}

func (s *Session) State() role.State { return s.Decision().State }

func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

func (s *Session) expired(now time.Time) bool {
	exp := s.ExpiresAt()
	return !exp.IsZero() && !now.Before(exp)
}

func (s *Session) SetDecision(d role.Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decision = d
}

// AddToCart reports whether it was added; a package already in the cart is not added twice.
func (s *Session) AddToCart(it pricing.Item) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Add(it)
}

func (s *Session) RemoveFromCart(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Remove(id)
}

// RefreshCart replaces the cart items with their current versions and drops the ids in gone.
// Items not in the cart are ignored.
func (s *Session) RefreshCart(current []pricing.Item, gone ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range current {
		s.cart.Replace(it)
	}
	for _, id := range gone {
		s.cart.Remove(id)
	}
}

// Cart returns a snapshot of the cart.
func (s *Session) Cart() *pricing.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pricing.NewSelection(s.cart.Items()...)
}

func (s *Session) ClearCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.Clear()
}

const pruneInterval = time.Minute

// Manager keeps the live sessions in memory. A session lives as long as the last token
// issued for it (Server.JWTExpirationDelta); expired sessions are dropped on lookup and
// swept on Create.
type Manager struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	ttl       time.Duration
	lastPrune time.Time
	log       core.Logger
	now       func() time.Time
}

func NewManager(conf *core.Config, logger core.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      conf.Server.JWTExpirationDelta,
		log:      logger,
		now:      time.Now,
	}
}

func (m *Manager) expiry(now time.Time) time.Time {
	if m.ttl <= 0 {
		return time.Time{}
	}
	return now.Add(m.ttl)
}

func (m *Manager) Create(ident core.Identity, accountID string, d role.Decision) *Session {
	now := m.now().UTC()
	s := &Session{
		id:        uuid.NewString(),
		identity:  ident,
		accountID: accountID,
		createdAt: now,
		decision:  d,
		cart:      pricing.NewSelection(),
		expiresAt: m.expiry(now),
	}
	m.mu.Lock()
	m.sessions[s.id] = s
	prune := now.Sub(m.lastPrune) >= pruneInterval
	if prune {
		m.lastPrune = now
	}
	m.mu.Unlock()

	if prune {
		if n := m.Prune(); n > 0 {
			m.log.Debug("expired sessions pruned", map[string]interface{}{"count": n})
		}
	}
	return s
}

// Renew pushes the expiry of s to a full lifetime from now and returns it. Called whenever
// a new token is issued for s.
func (m *Manager) Renew(s *Session) time.Time {
	exp := m.expiry(m.now().UTC())
	s.mu.Lock()
	s.expiresAt = exp
	s.mu.Unlock()
	return exp
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if s.expired(m.now()) {
		m.End(id)
		return nil, ErrNotFound
	}
	return s, nil
}

// Prune ends every expired session; it returns how many were ended.
func (m *Manager) Prune() int {
	now := m.now()
	m.mu.Lock()
	var ended []*Session
	for id, s := range m.sessions {
		if s.expired(now) {
			ended = append(ended, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range ended {
		s.ClearCart()
	}
	return len(ended)
}

// End drops a session and its cart.
func (m *Manager) End(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.ClearCart()
	}
}

// EndAll ends every session of an identity; it returns how many were ended.
func (m *Manager) EndAll(uid string) int {
	m.mu.Lock()
	var ended []*Session
	for id, s := range m.sessions {
		if s.identity.UID == uid {
			ended = append(ended, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range ended {
		s.ClearCart()
	}
	return len(ended)
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Watch ends the sessions of every identity signed out on the provider, until ctx is done
// or events is closed.
func (m *Manager) Watch(ctx context.Context, events <-chan core.IdentityEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind != core.IdentitySignedOut {
				continue
			}
			if n := m.EndAll(ev.Identity.UID); n > 0 {
				m.log.Debug("sessions ended on sign-out", map[string]interface{}{"uid": ev.Identity.UID, "count": n})
			}
		}
	}
}
