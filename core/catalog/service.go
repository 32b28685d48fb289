package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/edumart/core/pricing"
)

type (
	Repository interface {
		CreatePackage(ctx context.Context, pkg Package) (Package, error)
		// GetPackage returns ErrNotFound when no package has this id.
		GetPackage(ctx context.Context, id string) (Package, error)
		UpdatePackage(ctx context.Context, pkg Package) (Package, error)
		DeletePackage(ctx context.Context, id string) error
		// QueryPackages applies AND on the non-empty QueryFilter fields, ignoring stored casing.
		QueryPackages(ctx context.Context, filter QueryFilter) ([]Package, error)
	}

	Service struct {
		repo Repository
	}

	// Listing is a package as every view shows it.
	Listing struct {
		Package
		DisplayPrice     float64      `json:"displayPrice"`
		PerHourRate      *float64     `json:"perHourRate,omitempty"`
		TotalDiscountPct int64        `json:"totalDiscountPct"`
		DiscountTier     pricing.Tier `json:"discountTier"`
		Commission       float64      `json:"commission"`
	}

	// BrowseResult is one step of the filter chain: the options of the next level to select
	// and, once the chain is complete, the matching packages.
	BrowseResult struct {
		Filter   Filter    `json:"filter"`
		Next     string    `json:"next,omitempty"`
		Options  []string  `json:"options"`
		Complete bool      `json:"complete"`
		Results  []Listing `json:"results"`
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func NewListing(p Package) Listing {
	terms := p.Terms()
	price := pricing.DisplayPrice(terms)
	l := Listing{
		Package:          p,
		DisplayPrice:     pricing.Amount(price),
		TotalDiscountPct: pricing.TotalDiscountPct(terms),
		DiscountTier:     pricing.DiscountTier(terms),
		Commission:       pricing.Amount(pricing.CommissionOnSale(terms)),
	}
	if rate, ok := pricing.PerHourRate(terms, price); ok {
		r := pricing.Amount(rate)
		l.PerHourRate = &r
	}
	return l
}

func NewListings(pkgs []Package) []Listing {
	listings := make([]Listing, 0, len(pkgs))
	for _, p := range pkgs {
		listings = append(listings, NewListing(p))
	}
	return listings
}

// fill copies np into pkg and stores the total payable computed from the new terms.
func fill(pkg *Package, np NewPackage) {
	pkg.ClassGrade = np.ClassGrade
	pkg.Syllabus = np.Syllabus
	pkg.PackageType = np.PackageType
	pkg.PackageName = np.PackageName
	pkg.Subject = np.Subject
	pkg.Subtopic = np.Subtopic
	pkg.Chapter = np.Chapter
	pkg.Concept = np.Concept
	pkg.Duration = np.Duration
	pkg.Price = np.Price
	pkg.RegularDiscountPct = np.RegularDiscountPct
	pkg.AdditionalDiscountPct = np.AdditionalDiscountPct
	pkg.CommissionPct = np.CommissionPct
	pkg.CourseDetails = np.CourseDetails
	pkg.Freebies = np.Freebies

	total := pricing.Amount(pricing.ComputeTotalPayable(np.Price, np.RegularDiscountPct, np.AdditionalDiscountPct))
	pkg.TotalPayable = &total
}

// Create stores a new package. np must have been validated.
func (svc *Service) Create(ctx context.Context, np NewPackage) (Package, error) {
	now := time.Now().UTC()
	pkg := Package{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	fill(&pkg, np)
	return svc.repo.CreatePackage(ctx, pkg)
}

// Update replaces every editable field of a package. np must have been validated.
func (svc *Service) Update(ctx context.Context, id string, np NewPackage) (Package, error) {
	pkg, err := svc.repo.GetPackage(ctx, id)
	if err != nil {
		return Package{}, err
	}
	fill(&pkg, np)
	pkg.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdatePackage(ctx, pkg)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if _, err := svc.repo.GetPackage(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeletePackage(ctx, id)
}

func (svc *Service) Get(ctx context.Context, id string) (Package, error) {
	return svc.repo.GetPackage(ctx, id)
}

func (svc *Service) List(ctx context.Context, filter QueryFilter) ([]Package, error) {
	filter.Clean()
	return svc.repo.QueryPackages(ctx, filter)
}

// GetMany returns the packages with the given ids, in that order.
func (svc *Service) GetMany(ctx context.Context, ids ...string) ([]Package, error) {
	pkgs := make([]Package, 0, len(ids))
	for _, id := range ids {
		pkg, err := svc.repo.GetPackage(ctx, id)
		if err != nil {
			return nil, errors.Wrapf(err, "getting package %q", id)
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs, nil
}

// Unresolved is a package id Lookup could not load.
type Unresolved struct {
	ID  string
	Err error
}

// Lookup loads each package on its own and returns, in id order, the ones it could load and
// the ones it could not. One unreadable package never hides the others.
func (svc *Service) Lookup(ctx context.Context, ids ...string) ([]Package, []Unresolved) {
	pkgs := make([]Package, 0, len(ids))
	var failed []Unresolved
	for _, id := range ids {
		pkg, err := svc.repo.GetPackage(ctx, id)
		if err != nil {
			failed = append(failed, Unresolved{ID: id, Err: err})
			continue
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs, failed
}

// Items returns the priced cart items of pkgs.
func Items(pkgs []Package) []pricing.Item {
	items := make([]pricing.Item, 0, len(pkgs))
	for _, pkg := range pkgs {
		items = append(items, pkg.Item())
	}
	return items
}

// Browse resolves one step of the filter chain.
func (svc *Service) Browse(ctx context.Context, filter Filter) (BrowseResult, error) {
	filter = filter.Clean()
	pkgs, err := svc.repo.QueryPackages(ctx, QueryFilter{
		ClassGrade:  filter.ClassGrade,
		Syllabus:    filter.Syllabus,
		PackageType: filter.PackageType,
		PackageName: filter.PackageName,
	})
	if err != nil {
		return BrowseResult{}, errors.Wrap(err, "querying packages")
	}

	res := BrowseResult{
		Filter:  filter,
		Options: []string{},
		Results: NewListings(Results(pkgs, filter)),
	}
	if next, ok := filter.Next(); ok {
		res.Next = next.String()
		res.Options = Options(pkgs, filter, next)
	} else {
		res.Complete = true
	}
	return res, nil
}
