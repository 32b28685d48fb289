package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"
	"golang.org/x/crypto/bcrypt"

	echoapi "github.com/trezcool/edumart/apps/api/echo"
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
	docrepos "github.com/trezcool/edumart/storage/repos"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type ServerParam struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	Identities core.IdentityProvider
	Accounts   *account.Service
	Catalog    *catalog.Service
	Checkout   *checkout.Service
	Sessions   *session.Manager
	Validate   *validator.Validate
	Translator ut.Translator
	Metrics    *metrics.Metrics
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newStore(conf *core.Config, loggerParam DBLoggerParam) core.DocumentStore {
	store, err := storage.OpenDocumentStore(conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up storage: %v", err), err)
	}
	return store
}

func newCounterStore(conf *core.Config, store core.DocumentStore, loggerParam DBLoggerParam) storage.CounterStore {
	counters, err := storage.NewCounterStore(conf, store, loggerParam.Logger)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up identifier counters: %v", err), err)
	}
	return counters
}

func newAllocator(counters storage.CounterStore, conf *core.Config, logger core.Logger, m *metrics.Metrics) *allocator.Allocator {
	return allocator.New(counters, conf, logger, m)
}

func newIdentityProvider(store core.DocumentStore) *identitysvc.LocalProvider {
	return identitysvc.NewLocalProvider(store, bcrypt.DefaultCost)
}

func newMetrics() *metrics.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	catalog.InitValidators(validate, translator)
	return validate
}

func newServer(p ServerParam) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Identities: p.Identities,
		Accounts:   p.Accounts,
		Catalog:    p.Catalog,
		Checkout:   p.Checkout,
		Sessions:   p.Sessions,
		Validate:   p.Validate,
		Translator: p.Translator,
		Metrics:    p.Metrics,
		Gatherer:   prometheus.DefaultGatherer,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newMetrics))
	must(c.Provide(newStore))
	must(c.Provide(newCounterStore))
	must(c.Provide(newAllocator, dig.As(new(account.IDAllocator))))
	must(c.Provide(newIdentityProvider, dig.As(new(core.IdentityProvider))))
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(func(svc emailsvc.Service) core.EmailService { return svc }))
	must(c.Provide(docrepos.NewAccountRepository, dig.As(new(account.Repository))))
	must(c.Provide(docrepos.NewPackageRepository, dig.As(new(catalog.Repository))))
	must(c.Provide(docrepos.NewPurchaseRepository, dig.As(new(checkout.Repository))))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(account.NewService))
	must(c.Provide(catalog.NewService))
	must(c.Provide(checkout.NewService))
	must(c.Provide(session.NewManager))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
