package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edumart/core"
	"github.com/trezcool/edumart/core/account"
	"github.com/trezcool/edumart/core/catalog"
	"github.com/trezcool/edumart/core/checkout"
	"github.com/trezcool/edumart/storage/database"
	testutil "github.com/trezcool/edumart/tests"
)

func setup(t *testing.T) (*commandLine, *testutil.App, *bytes.Buffer) {
	app := testutil.NewApp(t)
	out := new(bytes.Buffer)
	return &commandLine{
		identities: app.Identities,
		accounts:   app.Accounts,
		purchases:  app.Checkout,
		out:        out,
	}, app, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func checkErr(t *testing.T, tt cliTest, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.True(t, errors.Is(err, tt.wantErr), "error = %v, wantErr %v", err, tt.wantErr)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)

	// no postgres backend
	err := cli.run([]string{"admin", "migrate", "up"})
	assert.Equal(t, errNoDatabase, err)

	// sql.Open does not connect
	db, err := sql.Open("postgres", "postgres://localhost/edumart_test?sslmode=disable")
	require.NoError(t, err)
	defer db.Close()
	cli.db = db

	orig := database.GooseRunFunc
	defer func() { database.GooseRunFunc = orig }()
	database.GooseRunFunc = func(command string, db *sql.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "index_payments", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}
}

func Test_commandLine_identities(t *testing.T) {
	cli, app, out := setup(t)
	ctx := context.Background()
	app.CreateAccount(t, "Ravi Kumar", "ravi@edumart.test", account.RoleStudent, "")

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "setpassword: no args", args: []string{"setpassword"}, wantErr: errHelp},
		{name: "setpassword: no password", args: []string{"setpassword", "-email", "ravi@edumart.test"}, wantErr: errHelp},
		{name: "setpassword: unknown email", args: []string{"setpassword", "-email", "lol@edumart.test"}, extra: extra{pwd: "new-pass-1"}, wantErr: core.ErrIdentityNotFound},
		{name: "setpassword", args: []string{"setpassword", "-email", "RAVI@edumart.test"}, extra: extra{pwd: "new-pass-1"}},
		{name: "createadmin: no password", args: []string{"createadmin", "-email", "boss@edumart.test"}, wantErr: errHelp},
		{name: "createadmin", args: []string{"createadmin", "-email", "boss@edumart.test"}, extra: extra{pwd: "boss-pass-1"}},
		{name: "createadmin again", args: []string{"createadmin", "-email", "boss@edumart.test"}, extra: extra{pwd: "boss-pass-2"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}

	_, err := app.Identities.SignIn(ctx, "ravi@edumart.test", "new-pass-1")
	assert.NoError(t, err)
	boss, err := app.Identities.SignIn(ctx, "boss@edumart.test", "boss-pass-2")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "admin uid: "+boss.UID)
}

func Test_commandLine_records(t *testing.T) {
	cli, app, out := setup(t)
	ctx := context.Background()

	promoter := app.CreateAccount(t, "Asha Rao", "asha@edumart.test", account.RolePromoter, "")
	pkg := app.CreatePackage(t, "Maths", 1000, 10, 5, 10)

	tests := []cliTest{
		{name: "approvepromoter: no id", args: []string{"approvepromoter"}, wantErr: errHelp},
		{name: "approvepromoter: unknown", args: []string{"approvepromoter", "-id", "nope"}, wantErr: account.ErrNotFound},
		{name: "approvepromoter", args: []string{"approvepromoter", "-id", promoter.ID}},
		{name: "settle: no id", args: []string{"settle"}, wantErr: errHelp},
		{name: "settle: unknown", args: []string{"settle", "-id", "nope"}, wantErr: checkout.ErrNotFound},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}

	acct, err := app.Accounts.Get(ctx, promoter.ID)
	require.NoError(t, err)
	assert.True(t, acct.PromoterApproved)

	res, err := app.Checkout.Record(ctx, checkout.Checkout{
		StudentID:  "student-1",
		PromoterID: acct.UniqueID,
		PaymentID:  "pay_1",
		Packages:   []catalog.Package{pkg},
	})
	require.NoError(t, err)
	purchaseID := res.Recorded[0].ID

	require.NoError(t, cli.run([]string{"admin", "settle", "-id", purchaseID}))
	assert.Contains(t, out.String(), "purchase "+purchaseID+": Settled, commission 85.00")

	require.NoError(t, app.Store.Delete(ctx, checkout.ReportCollection, purchaseID))
	out.Reset()
	require.NoError(t, cli.run([]string{"admin", "orphans"}))
	assert.Contains(t, out.String(), purchaseID+"\tpayment=pay_1")
}
