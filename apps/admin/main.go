package main

import (
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/edumart/core"
	"github.com/trezcool/edumart/core/account"
	"github.com/trezcool/edumart/core/allocator"
	"github.com/trezcool/edumart/core/checkout"
	emailsvc "github.com/trezcool/edumart/services/email"
	identitysvc "github.com/trezcool/edumart/services/identity"
	logsvc "github.com/trezcool/edumart/services/logger"
	"github.com/trezcool/edumart/storage"
	"github.com/trezcool/edumart/storage/database"
	"github.com/trezcool/edumart/storage/docstore/sqlxstore"
	docrepos "github.com/trezcool/edumart/storage/repos"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()
	appLogger := logsvc.NewRollbarLogger(logger, conf)
	appLogger.Enable(!conf.Debug)

	// set up storage
	var (
		store core.DocumentStore
		cli   = &commandLine{out: os.Stdout}
	)
	if conf.Storage.Backend == storage.BackendPostgres {
		// the bare database, so that migrations can run before the store is used
		errAndDie(database.CreateIfNotExist(conf))
		db, err := database.Open(conf)
		errAndDie(err)
		cli.db = db.DB
		store = sqlxstore.New(db, conf.Storage.MaxTxAttempts)
	} else {
		var err error
		store, err = storage.OpenDocumentStore(conf)
		errAndDie(err)
	}

	// set up services
	mailSvc := emailsvc.NewService(conf, appLogger)
	cli.identities = identitysvc.NewLocalProvider(store, bcrypt.DefaultCost)
	cli.accounts = account.NewService(
		docrepos.NewAccountRepository(store, appLogger),
		cli.identities,
		allocator.New(allocator.NewDocCounterStore(store), conf, appLogger, nil),
		mailSvc,
		appLogger,
		conf,
	)
	cli.purchases = checkout.NewService(docrepos.NewPurchaseRepository(store, appLogger), mailSvc, appLogger, conf, nil)

	// start CLI
	err := cli.run(os.Args)
	mailSvc.Wait()
	_ = store.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
