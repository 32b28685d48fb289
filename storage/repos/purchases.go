package docrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edumart/core"
	"github.com/trezcool/edumart/core/checkout"
)

type PurchaseRepository struct {
	store core.DocumentStore
	log   core.Logger
}

var _ checkout.Repository = (*PurchaseRepository)(nil) // interface compliance check

func NewPurchaseRepository(store core.DocumentStore, logger core.Logger) *PurchaseRepository {
	return &PurchaseRepository{store: store, log: logger}
}

func (repo *PurchaseRepository) CreatePurchase(ctx context.Context, p checkout.Purchase) error {
	return errors.Wrap(repo.store.Set(ctx, checkout.LedgerCollection, p.ID, p.ToDocument()), "writing purchase")
}

func (repo *PurchaseRepository) CreateReport(ctx context.Context, r checkout.Report) error {
	return errors.Wrap(repo.store.Set(ctx, checkout.ReportCollection, r.ID, r.ToDocument()), "writing student report")
}

func (repo *PurchaseRepository) get(ctx context.Context, collection, id string) (core.Document, error) {
	if id == "" {
		return nil, checkout.ErrNotFound
	}
	doc, err := repo.store.Get(ctx, collection, id)
	if err != nil {
		if errors.Is(err, core.ErrDocNotFound) {
			return nil, checkout.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting %s", collection)
	}
	return doc, nil
}

func (repo *PurchaseRepository) GetPurchase(ctx context.Context, id string) (checkout.Purchase, error) {
	doc, err := repo.get(ctx, checkout.LedgerCollection, id)
	if err != nil {
		return checkout.Purchase{}, err
	}
	return checkout.PurchaseFromDocument(doc)
}

func (repo *PurchaseRepository) GetReport(ctx context.Context, id string) (checkout.Report, error) {
	doc, err := repo.get(ctx, checkout.ReportCollection, id)
	if err != nil {
		return checkout.Report{}, err
	}
	return checkout.ReportFromDocument(doc)
}

// QueryPurchases skips malformed records, logging each of them.
func (repo *PurchaseRepository) QueryPurchases(ctx context.Context, filter checkout.QueryFilter) ([]checkout.Purchase, error) {
	var where []core.Where
	if filter.StudentID != "" {
		where = append(where, core.Eq("studentId", filter.StudentID))
	}
	if filter.PromoterID != "" {
		where = append(where, core.Eq("promoterId", filter.PromoterID))
	}
	if filter.PaymentID != "" {
		where = append(where, core.Eq("paymentId", filter.PaymentID))
	}
	if filter.SettlementStatus != "" {
		where = append(where, core.Eq("settlementStatus", string(filter.SettlementStatus)))
	}

	docs, err := repo.store.Query(ctx, checkout.LedgerCollection, where...)
	if err != nil {
		return nil, errors.Wrap(err, "querying purchases")
	}
	purchases := make([]checkout.Purchase, 0, len(docs))
	for _, doc := range docs {
		p, err := checkout.PurchaseFromDocument(doc)
		if err != nil {
			repo.log.Warn("skipping malformed purchase", err)
			continue
		}
		purchases = append(purchases, p)
	}
	return purchases, nil
}

func (repo *PurchaseRepository) QueryReports(ctx context.Context, studentID string) ([]checkout.Report, error) {
	if studentID == "" {
		return []checkout.Report{}, nil
	}
	docs, err := repo.store.Query(ctx, checkout.ReportCollection, core.Eq("studentId", studentID))
	if err != nil {
		return nil, errors.Wrap(err, "querying student reports")
	}
	reports := make([]checkout.Report, 0, len(docs))
	for _, doc := range docs {
		r, err := checkout.ReportFromDocument(doc)
		if err != nil {
			repo.log.Warn("skipping malformed student report", err)
			continue
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func (repo *PurchaseRepository) SettlePurchase(ctx context.Context, id string, at time.Time) (checkout.Purchase, bool, error) {
	if id == "" {
		return checkout.Purchase{}, false, checkout.ErrNotFound
	}
	var (
		p       checkout.Purchase
		changed bool
	)
	err := repo.store.RunTransaction(ctx, func(tx core.Tx) error {
		doc, err := tx.Get(checkout.LedgerCollection, id)
		if err != nil {
			if errors.Is(err, core.ErrDocNotFound) {
				return checkout.ErrNotFound
			}
			return err
		}
		if p, err = checkout.PurchaseFromDocument(doc); err != nil {
			return err
		}
		if changed = !p.IsSettled(); !changed {
			return nil
		}

		p.SettlementStatus = checkout.SettlementSettled
		p.SettledAt = &at
		tx.Set(checkout.LedgerCollection, id, p.ToDocument())
		return nil
	})
	if err != nil {
		if errors.Is(err, checkout.ErrNotFound) {
			return checkout.Purchase{}, false, checkout.ErrNotFound
		}
		return checkout.Purchase{}, false, errors.Wrap(err, "settling purchase")
	}
	return p, changed, nil
}
