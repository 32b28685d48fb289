package identitysvc

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/edumart/core"
)

// Collection holds one document per identity, keyed by lower-cased email.
const Collection = "identities"

const subscriberBuffer = 16

// LocalProvider is a core.IdentityProvider keeping bcrypt password hashes in the document store.
type LocalProvider struct {
	store core.DocumentStore
	cost  int

	mu      sync.Mutex
	subs    map[int]chan core.IdentityEvent
	nextSub int
}

var _ core.IdentityProvider = (*LocalProvider)(nil)

// NewLocalProvider uses bcrypt.DefaultCost when cost is 0.
func NewLocalProvider(store core.DocumentStore, cost int) *LocalProvider {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &LocalProvider{
		store: store,
		cost:  cost,
		subs:  make(map[int]chan core.IdentityEvent),
	}
}

func emailKey(email string) string {
	return core.CleanString(email, true /* lower */)
}

func (p *LocalProvider) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", errors.Wrap(err, "hashing password")
	}
	return string(hash), nil
}

func (p *LocalProvider) Register(ctx context.Context, email, password string) (core.Identity, error) {
	hash, err := p.hash(password)
	if err != nil {
		return core.Identity{}, err
	}
	ident := core.Identity{UID: uuid.NewString(), Email: emailKey(email)}

	err = p.store.RunTransaction(ctx, func(tx core.Tx) error {
		_, err := tx.Get(Collection, ident.Email)
		switch {
		case err == nil:
			return core.ErrEmailTaken
		case !errors.Is(err, core.ErrDocNotFound):
			return err
		}
		tx.Set(Collection, ident.Email, core.Document{
			"uid":          ident.UID,
			"email":        ident.Email,
			"passwordHash": hash,
			"createdAt":    time.Now().UTC(),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, core.ErrEmailTaken) {
			return core.Identity{}, core.ErrEmailTaken
		}
		return core.Identity{}, errors.Wrap(err, "registering identity")
	}
	return ident, nil
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (core.Identity, error) {
	doc, err := p.store.Get(ctx, Collection, emailKey(email))
	if err != nil {
		if errors.Is(err, core.ErrDocNotFound) {
			return core.Identity{}, core.ErrInvalidCredentials
		}
		return core.Identity{}, errors.Wrap(err, "getting identity")
	}
	if err = bcrypt.CompareHashAndPassword([]byte(doc.GetString("passwordHash")), []byte(password)); err != nil {
		return core.Identity{}, core.ErrInvalidCredentials
	}

	ident := core.Identity{UID: doc.GetString("uid"), Email: doc.GetString("email")}
	p.publish(core.IdentityEvent{Kind: core.IdentitySignedIn, Identity: ident, At: time.Now().UTC()})
	return ident, nil
}

func (p *LocalProvider) SignOut(ctx context.Context, uid string) error {
	doc, err := p.byUID(ctx, uid)
	if err != nil {
		return err
	}
	ident := core.Identity{UID: uid, Email: doc.GetString("email")}
	p.publish(core.IdentityEvent{Kind: core.IdentitySignedOut, Identity: ident, At: time.Now().UTC()})
	return nil
}

func (p *LocalProvider) SetPassword(ctx context.Context, email, password string) error {
	hash, err := p.hash(password)
	if err != nil {
		return err
	}
	err = p.store.Update(ctx, Collection, emailKey(email), core.Document{"passwordHash": hash})
	if errors.Is(err, core.ErrDocNotFound) {
		return core.ErrIdentityNotFound
	}
	return errors.Wrap(err, "setting password")
}

func (p *LocalProvider) Delete(ctx context.Context, uid string) error {
	doc, err := p.byUID(ctx, uid)
	if err != nil {
		return err
	}
	return errors.Wrap(p.store.Delete(ctx, Collection, doc.ID()), "deleting identity")
}

func (p *LocalProvider) byUID(ctx context.Context, uid string) (core.Document, error) {
	docs, err := p.store.Query(ctx, Collection, core.Eq("uid", uid))
	if err != nil {
		return nil, errors.Wrap(err, "querying identities")
	}
	if len(docs) == 0 {
		return nil, core.ErrIdentityNotFound
	}
	return docs[0], nil
}

func (p *LocalProvider) Subscribe() (<-chan core.IdentityEvent, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextSub
	p.nextSub++
	ch := make(chan core.IdentityEvent, subscriberBuffer)
	p.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// publish never blocks: a subscriber with a full buffer misses the event.
func (p *LocalProvider) publish(ev core.IdentityEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
