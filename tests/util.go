// Package testutil wires the domain services on an in-memory store for tests.
package testutil

import (
	"context"
	"net/mail"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/edumart/core"
	"github.com/trezcool/edumart/core/account"
	"github.com/trezcool/edumart/core/allocator"
	"github.com/trezcool/edumart/core/catalog"
	"github.com/trezcool/edumart/core/checkout"
	"github.com/trezcool/edumart/core/metrics"
	"github.com/trezcool/edumart/core/session"
	emailsvc "github.com/trezcool/edumart/services/email"
	identitysvc "github.com/trezcool/edumart/services/identity"
	logsvc "github.com/trezcool/edumart/services/logger"
	"github.com/trezcool/edumart/storage"
	inmemstore "github.com/trezcool/edumart/storage/docstore/inmem"
	docrepos "github.com/trezcool/edumart/storage/repos"
)

const (
	AdminUID      = "admin-uid"
	AdminEmail    = "admin@edumart.test"
	AdminPassword = "admin-pass-123"
	Password      = "s3cret-pass"
)

// App is a fully wired in-memory application.
type App struct {
	Conf       *core.Config
	Logger     core.Logger
	Store      *inmemstore.Store
	Mail       *emailsvc.ConsoleService
	Metrics    *metrics.Metrics
	Registry   *prometheus.Registry
	Identities *identitysvc.LocalProvider
	Allocator  *allocator.Allocator
	Accounts   *account.Service
	Catalog    *catalog.Service
	Checkout   *checkout.Service
	Sessions   *session.Manager
	Validate   *validator.Validate
	Translator ut.Translator
}

func NewConfig() *core.Config {
	return &core.Config{
		Env:              "TEST",
		TestMode:         true,
		AppName:          "Edumart",
		SecretKey:        "test-secret",
		AdminUID:         AdminUID,
		IDPrefix:         "ISP",
		IDFallbackToken:  "USR",
		DefaultFromEmail: mail.Address{Name: "Edumart", Address: "noreply@edumart.test"},
		SupportEmail:     mail.Address{Name: "Edumart Support", Address: "support@edumart.test"},
		Server: core.ServerConfig{
			Address:            ":0",
			ShutdownTimeout:    time.Second,
			JWTExpirationDelta: time.Hour,
		},
		Storage: core.StorageConfig{Backend: "memory", MaxTxAttempts: 50},
	}
}

func NewValidator() *validator.Validate {
	validate, _ := newValidator()
	return validate
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	catalog.InitValidators(validate, translator)
	return validate, translator
}

func NewApp(t *testing.T) *App {
	t.Helper()
	conf := NewConfig()
	logger := logsvc.NewNopLogger()
	store := storage.NewMemoryStore(conf)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	validate, translator := newValidator()

	identities := identitysvc.NewLocalProvider(store, bcrypt.MinCost)
	alloc := allocator.New(allocator.NewDocCounterStore(store), conf, logger, m)
	app := &App{
		Conf:       conf,
		Logger:     logger,
		Store:      store,
		Mail:       mailSvc,
		Metrics:    m,
		Registry:   reg,
		Identities: identities,
		Allocator:  alloc,
		Accounts: account.NewService(
			docrepos.NewAccountRepository(store, logger), identities, alloc, mailSvc, logger, conf),
		Catalog:    catalog.NewService(docrepos.NewPackageRepository(store, logger)),
		Checkout:   checkout.NewService(docrepos.NewPurchaseRepository(store, logger), mailSvc, logger, conf, m),
		Sessions:   session.NewManager(conf, logger),
		Validate:   validate,
		Translator: translator,
	}
	t.Cleanup(func() { _ = store.Close() })
	return app
}

// CreateAdmin registers the admin identity and returns it. The admin has no account.
func (app *App) CreateAdmin(t *testing.T) core.Identity {
	t.Helper()
	ident, err := app.Identities.Register(context.Background(), AdminEmail, AdminPassword)
	if err != nil {
		t.Fatalf("createAdmin() failed: %v", err)
	}
	app.Conf.AdminUID = ident.UID
	return ident
}

// CreateAccount registers an account with Password.
func (app *App) CreateAccount(t *testing.T, name, email string, r account.Role, referralID string) account.Account {
	t.Helper()
	na := account.NewAccount{
		DisplayName:     name,
		Email:           email,
		Password:        Password,
		PasswordConfirm: Password,
		Phone:           "+919876543210",
		Role:            r,
		ReferralID:      referralID,
	}
	if r == account.RolePromoter {
		na.BusinessArea = "Pune"
	}
	if err := na.Validate(app.Validate); err != nil {
		t.Fatalf("createAccount() failed: %v", err)
	}
	acct, err := app.Accounts.Register(context.Background(), na)
	if err != nil {
		t.Fatalf("createAccount() failed: %v", err)
	}
	return acct
}

// CreateApprovedPromoter registers a promoter and approves it.
func (app *App) CreateApprovedPromoter(t *testing.T, name, email string) account.Account {
	t.Helper()
	acct := app.CreateAccount(t, name, email, account.RolePromoter, "")
	acct, err := app.Accounts.ApprovePromoter(context.Background(), acct.ID)
	if err != nil {
		t.Fatalf("createApprovedPromoter() failed: %v", err)
	}
	return acct
}

// CreatePackage creates a Full Course package of class 10 CBSE.
func (app *App) CreatePackage(t *testing.T, subject string, price, regular, additional, commission float64) catalog.Package {
	t.Helper()
	np := catalog.NewPackage{
		ClassGrade:            "10",
		Syllabus:              catalog.SyllabusCBSE,
		PackageType:           catalog.TypeRegular,
		PackageName:           catalog.NameFullCourse,
		Subject:               subject,
		Duration:              40,
		Price:                 price,
		RegularDiscountPct:    regular,
		AdditionalDiscountPct: additional,
		CommissionPct:         commission,
	}
	if err := np.Validate(app.Validate); err != nil {
		t.Fatalf("createPackage() failed: %v", err)
	}
	pkg, err := app.Catalog.Create(context.Background(), np)
	if err != nil {
		t.Fatalf("createPackage() failed: %v", err)
	}
	return pkg
}
