package docrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edumart/core"
	"github.com/trezcool/edumart/core/account"
)

type AccountRepository struct {
	store core.DocumentStore
	log   core.Logger
}

var _ account.Repository = (*AccountRepository)(nil) // interface compliance check

func NewAccountRepository(store core.DocumentStore, logger core.Logger) *AccountRepository {
	return &AccountRepository{store: store, log: logger}
}

func (repo *AccountRepository) CreateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	if err := repo.store.Set(ctx, account.Collection, acct.ID, acct.ToDocument()); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return account.Account{}, errors.Wrap(account.ErrUniqueIDTaken, acct.UniqueID)
		}
		return account.Account{}, errors.Wrap(err, "saving account")
	}
	return acct, nil
}

func (repo *AccountRepository) GetAccount(ctx context.Context, id string) (account.Account, error) {
	if id == "" {
		return account.Account{}, account.ErrNotFound
	}
	doc, err := repo.store.Get(ctx, account.Collection, id)
	if err != nil {
		if errors.Is(err, core.ErrDocNotFound) {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, errors.Wrap(err, "getting account")
	}
	return account.FromDocument(doc)
}

func (repo *AccountRepository) GetAccountByUniqueID(ctx context.Context, uniqueID string) (account.Account, error) {
	docs, err := repo.store.Query(ctx, account.Collection, core.Eq(account.UniqueIDField, uniqueID))
	if err != nil {
		return account.Account{}, errors.Wrap(err, "querying accounts")
	}
	if len(docs) == 0 {
		return account.Account{}, account.ErrNotFound
	}
	if len(docs) > 1 {
		// only possible with degraded identifiers
		repo.log.Warn("unique id shared by several accounts", map[string]interface{}{"uniqueId": uniqueID, "count": len(docs)})
	}
	return account.FromDocument(docs[0])
}

// QueryAccounts skips malformed records, logging each of them.
func (repo *AccountRepository) QueryAccounts(ctx context.Context, filter account.QueryFilter) ([]account.Account, error) {
	where := make([]core.Where, 0, 2)
	if filter.Role != "" {
		where = append(where, core.Eq("role", string(filter.Role)))
	}
	if filter.ReferralID != "" {
		where = append(where, core.Eq("referralId", filter.ReferralID))
	}

	docs, err := repo.store.Query(ctx, account.Collection, where...)
	if err != nil {
		return nil, errors.Wrap(err, "querying accounts")
	}
	accts := make([]account.Account, 0, len(docs))
	for _, doc := range docs {
		acct, err := account.FromDocument(doc)
		if err != nil {
			repo.log.Warn("skipping malformed account", err)
			continue
		}
		accts = append(accts, acct)
	}
	return accts, nil
}

func (repo *AccountRepository) update(ctx context.Context, id string, fields core.Document) (account.Account, error) {
	fields["updatedAt"] = time.Now().UTC()
	if err := repo.store.Update(ctx, account.Collection, id, fields); err != nil {
		if errors.Is(err, core.ErrDocNotFound) {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, errors.Wrap(err, "updating account")
	}
	return repo.GetAccount(ctx, id)
}

func (repo *AccountRepository) UpdateProfile(ctx context.Context, id string, ua account.UpdateAccount) (account.Account, error) {
	fields := make(core.Document)
	for field, val := range map[string]string{
		"displayName":  ua.DisplayName,
		"phone":        ua.Phone,
		"businessArea": ua.BusinessArea,
		"classGrade":   ua.ClassGrade,
		"syllabus":     ua.Syllabus,
	} {
		if val != "" {
			fields[field] = val
		}
	}
	return repo.update(ctx, id, fields)
}

func (repo *AccountRepository) SetAlsoPromoter(ctx context.Context, id string) (account.Account, error) {
	return repo.update(ctx, id, core.Document{"alsoPromoter": true})
}

func (repo *AccountRepository) ApprovePromoter(ctx context.Context, id string) (account.Account, bool, error) {
	var (
		acct    account.Account
		changed bool
	)
	err := repo.store.RunTransaction(ctx, func(tx core.Tx) error {
		doc, err := tx.Get(account.Collection, id)
		if err != nil {
			if errors.Is(err, core.ErrDocNotFound) {
				return account.ErrNotFound
			}
			return err
		}
		if acct, err = account.FromDocument(doc); err != nil {
			return err
		}
		if changed = !acct.PromoterApproved; !changed {
			return nil
		}

		now := time.Now().UTC()
		doc = doc.Clone()
		doc["promoterApproved"] = true
		doc["updatedAt"] = now
		tx.Set(account.Collection, id, doc)
		acct.PromoterApproved = true
		acct.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return account.Account{}, false, account.ErrNotFound
		}
		return account.Account{}, false, errors.Wrap(err, "approving promoter")
	}
	return acct, changed, nil
}
