package account

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edumart/core"
	"github.com/trezcool/edumart/core/allocator"
)

var (
	ErrNotFound        = errors.New("account not found")
	ErrNotPromoter     = errors.New("account is not a promoter")
	ErrUnknownReferral = errors.New("unknown referral id")
	ErrUniqueIDTaken   = errors.New("unique id already taken")
)

// allocationAttempts bounds the identifiers tried for one registration; only degraded
// identifiers can collide.
const allocationAttempts = 3

type (
	Repository interface {
		CreateAccount(ctx context.Context, acct Account) (Account, error)
		// GetAccount and GetAccountByUniqueID return ErrNotFound when there is no match.
		GetAccount(ctx context.Context, id string) (Account, error)
		GetAccountByUniqueID(ctx context.Context, uniqueID string) (Account, error)
		// QueryAccounts applies AND on the Role and ReferralID filters.
		QueryAccounts(ctx context.Context, filter QueryFilter) ([]Account, error)
		// UpdateProfile only writes the non-empty fields of ua.
		UpdateProfile(ctx context.Context, id string, ua UpdateAccount) (Account, error)
		SetAlsoPromoter(ctx context.Context, id string) (Account, error)
		// ApprovePromoter atomically sets promoterApproved; changed is false if it already was.
		ApprovePromoter(ctx context.Context, id string) (acct Account, changed bool, err error)
	}

	IDAllocator interface {
		Allocate(ctx context.Context, displayName string) allocator.Identifier
	}

	Service struct {
		repo       Repository
		identities core.IdentityProvider
		ids        IDAllocator
		mailSvc    core.EmailService
		log        core.Logger
		conf       *core.Config
	}
)

func NewService(
	repo Repository,
	identities core.IdentityProvider,
	ids IDAllocator,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		repo:       repo,
		identities: identities,
		ids:        ids,
		mailSvc:    mailSvc,
		log:        logger,
		conf:       conf,
	}
}

func fieldError(field string, err error) error {
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}

// Register creates the identity and the account of a new user. na must have been validated.
// The unique id is allocated here and only here.
func (svc *Service) Register(ctx context.Context, na NewAccount) (Account, error) {
	if na.ReferralID != "" {
		promoter, err := svc.repo.GetAccountByUniqueID(ctx, na.ReferralID)
		switch {
		case errors.Is(err, ErrNotFound):
			return Account{}, fieldError("referralId", ErrUnknownReferral)
		case err != nil:
			return Account{}, errors.Wrap(err, "checking referral id")
		case !promoter.IsPromoterEligible():
			return Account{}, fieldError("referralId", ErrUnknownReferral)
		}
	}

	ident, err := svc.identities.Register(ctx, na.Email, na.Password)
	if err != nil {
		if errors.Is(err, core.ErrEmailTaken) {
			return Account{}, fieldError("email", core.ErrEmailTaken)
		}
		return Account{}, errors.Wrap(err, "registering identity")
	}

	now := time.Now().UTC()
	acct := Account{
		ID:           ident.UID,
		DisplayName:  na.DisplayName,
		Email:        ident.Email,
		Phone:        na.Phone,
		Role:         na.Role,
		ReferralID:   na.ReferralID,
		BusinessArea: na.BusinessArea,
		ClassGrade:   na.ClassGrade,
		Syllabus:     na.Syllabus,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var uid allocator.Identifier
	for attempt := 1; ; attempt++ {
		uid = svc.ids.Allocate(ctx, na.DisplayName)
		acct.UniqueID, acct.UniqueIDDegraded = uid.Value, uid.Degraded

		var created Account
		created, err = svc.repo.CreateAccount(ctx, acct)
		if errors.Is(err, ErrUniqueIDTaken) && attempt < allocationAttempts {
			svc.log.Warn("unique id already taken, allocating another", err, map[string]interface{}{"uniqueId": uid.Value})
			continue
		}
		if err == nil {
			acct = created
		}
		break
	}
	if err != nil {
		// leave no identity without an account, so the user can register again
		if delErr := svc.identities.Delete(ctx, ident.UID); delErr != nil {
			svc.log.Error("could not remove orphan identity", delErr, map[string]interface{}{"uid": ident.UID})
		}
		return Account{}, errors.Wrap(err, "creating account")
	}
	if uid.Degraded {
		svc.log.Warn("account registered with a degraded unique id", acct)
	}
	return acct, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Account, error) {
	return svc.repo.GetAccount(ctx, id)
}

func (svc *Service) GetByUniqueID(ctx context.Context, uniqueID string) (Account, error) {
	return svc.repo.GetAccountByUniqueID(ctx, core.CleanString(uniqueID))
}

func (svc *Service) List(ctx context.Context, filter QueryFilter) ([]Account, error) {
	filter.Clean()
	accts, err := svc.repo.QueryAccounts(ctx, filter)
	if err != nil {
		return nil, err
	}
	matching := make([]Account, 0, len(accts))
	for _, a := range accts {
		if filter.Matches(a) {
			matching = append(matching, a)
		}
	}
	return matching, nil
}

// Referrals lists the accounts registered with promoterUniqueID as their referral id.
func (svc *Service) Referrals(ctx context.Context, promoterUniqueID string) ([]Account, error) {
	if promoterUniqueID == "" {
		return []Account{}, nil
	}
	return svc.repo.QueryAccounts(ctx, QueryFilter{ReferralID: promoterUniqueID})
}

// UpdateProfile changes the self-service fields of an account. ua must have been validated.
func (svc *Service) UpdateProfile(ctx context.Context, id string, ua UpdateAccount) (Account, error) {
	if ua.IsEmpty() {
		return svc.repo.GetAccount(ctx, id)
	}
	return svc.repo.UpdateProfile(ctx, id, ua)
}

// EnablePromoter lets a student also act as a promoter once an admin approves them.
func (svc *Service) EnablePromoter(ctx context.Context, id string) (Account, error) {
	acct, err := svc.repo.GetAccount(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if acct.IsPromoterEligible() {
		return acct, nil
	}
	return svc.repo.SetAlsoPromoter(ctx, id)
}

// ApprovePromoter is the only way promoterApproved goes from false to true.
// Approving an approved promoter changes nothing.
func (svc *Service) ApprovePromoter(ctx context.Context, id string) (Account, error) {
	acct, err := svc.repo.GetAccount(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if !acct.IsPromoterEligible() {
		return Account{}, core.NewValidationError(ErrNotPromoter)
	}

	acct, changed, err := svc.repo.ApprovePromoter(ctx, id)
	if err != nil {
		return Account{}, errors.Wrap(err, "approving promoter")
	}
	if changed {
		svc.log.Info("promoter approved", acct)
		svc.mailSvc.SendMessages(svc.approvalMessage(acct))
	}
	return acct, nil
}

func (svc *Service) approvalMessage(acct Account) *core.EmailMessage {
	text := fmt.Sprintf(
		"Hi %s,\n\nYour promoter account %s has been approved. "+
			"Sign in to %s to open your promoter dashboard and share your referral id with your students.\n",
		acct.DisplayName, acct.UniqueID, svc.conf.AppName,
	)
	return &core.EmailMessage{
		To:          []mail.Address{{Name: acct.DisplayName, Address: acct.Email}},
		Subject:     "Your promoter account is approved",
		TextContent: text,
	}
}
