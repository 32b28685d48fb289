package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
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

func startManual() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up storage
	store, err := storage.OpenDocumentStore(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up storage: %v", err), err)
	}
	defer func() {
		if err = store.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()
	counters, err := storage.NewCounterStore(conf, store, dbLogger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up identifier counters: %v", err), err)
	}
	defer func() {
		if err := counters.Close(); err != nil {
			dbLogger.Error("Failed to close counters", err)
		}
	}()

	// set up services
	mailSvc := emailsvc.NewService(conf, logger)
	defer mailSvc.Wait()
	m := metrics.New(prometheus.DefaultRegisterer)
	identities := identitysvc.NewLocalProvider(store, bcrypt.DefaultCost)
	ids := allocator.New(counters, conf, logger, m)

	accountSvc := account.NewService(docrepos.NewAccountRepository(store, dbLogger), identities, ids, mailSvc, logger, conf)
	catalogSvc := catalog.NewService(docrepos.NewPackageRepository(store, dbLogger))
	checkoutSvc := checkout.NewService(docrepos.NewPurchaseRepository(store, dbLogger), mailSvc, logger, conf, m)
	sessions := session.NewManager(conf, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	catalog.InitValidators(validate, translator)

	// sign-outs end every session of the identity
	events, unsubscribe := identities.Subscribe()
	defer unsubscribe()
	watchCtx, stopWatching := context.WithCancel(context.Background())
	defer stopWatching()
	go sessions.Watch(watchCtx, events)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			Identities: identities,
			Accounts:   accountSvc,
			Catalog:    catalogSvc,
			Checkout:   checkoutSvc,
			Sessions:   sessions,
			Validate:   validate,
			Translator: translator,
			Metrics:    m,
			Gatherer:   prometheus.DefaultGatherer,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
