// Package docrepos implements the domain repositories on a core.DocumentStore.
package docrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/edumart/core"
	"github.com/trezcool/edumart/core/catalog"
)

type PackageRepository struct {
	store core.DocumentStore
	log   core.Logger
}

var _ catalog.Repository = (*PackageRepository)(nil) // interface compliance check

func NewPackageRepository(store core.DocumentStore, logger core.Logger) *PackageRepository {
	return &PackageRepository{store: store, log: logger}
}

func (repo *PackageRepository) CreatePackage(ctx context.Context, pkg catalog.Package) (catalog.Package, error) {
	return repo.save(ctx, pkg)
}

func (repo *PackageRepository) GetPackage(ctx context.Context, id string) (catalog.Package, error) {
	doc, err := repo.store.Get(ctx, catalog.Collection, id)
	if err != nil {
		if errors.Is(err, core.ErrDocNotFound) {
			return catalog.Package{}, catalog.ErrNotFound
		}
		return catalog.Package{}, errors.Wrap(err, "getting package")
	}
	return catalog.FromDocument(doc)
}

func (repo *PackageRepository) UpdatePackage(ctx context.Context, pkg catalog.Package) (catalog.Package, error) {
	return repo.save(ctx, pkg)
}

func (repo *PackageRepository) save(ctx context.Context, pkg catalog.Package) (catalog.Package, error) {
	if err := repo.store.Set(ctx, catalog.Collection, pkg.ID, pkg.ToDocument()); err != nil {
		return catalog.Package{}, errors.Wrap(err, "saving package")
	}
	return pkg, nil
}

func (repo *PackageRepository) DeletePackage(ctx context.Context, id string) error {
	return errors.Wrap(repo.store.Delete(ctx, catalog.Collection, id), "deleting package")
}

// QueryPackages skips malformed records, logging each of them.
func (repo *PackageRepository) QueryPackages(ctx context.Context, filter catalog.QueryFilter) ([]catalog.Package, error) {
	// stored vocabulary casing varies, so matching happens on the canonical values
	filter.Clean()
	docs, err := repo.store.Query(ctx, catalog.Collection)
	if err != nil {
		return nil, errors.Wrap(err, "querying packages")
	}
	pkgs := make([]catalog.Package, 0, len(docs))
	for _, doc := range docs {
		pkg, err := catalog.FromDocument(doc)
		if err != nil {
			repo.log.Warn("skipping malformed package", err)
			continue
		}
		if filter.Matches(pkg) {
			pkgs = append(pkgs, pkg)
		}
	}
	return pkgs, nil
}
