package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/edumart/core"
	"github.com/trezcool/edumart/core/account"
	"github.com/trezcool/edumart/core/checkout"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp       = errors.New("help provided")
	errNoDatabase = errors.New("migrations need the postgres storage backend")
)

type commandLine struct {
	db         *sql.DB // nil unless the postgres backend is used
	identities core.IdentityProvider
	accounts   *account.Service
	purchases  *checkout.Service
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS]            - run a goose migration command (up, down, status, ...)")
	fmt.Println("  createadmin -email EMAIL          - register the admin identity and print its uid")
	fmt.Println("  setpassword -email EMAIL          - set the password of an identity")
	fmt.Println("  approvepromoter -id ACCOUNT_ID    - approve a promoter account")
	fmt.Println("  settle -id PURCHASE_ID            - mark the commission of a purchase as paid out")
	fmt.Println("  orphans                           - list purchases without a student record")
}

// promptPassword reads a password from the terminal without echoing it.
func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createAdminCmd := flag.NewFlagSet("createadmin", flag.ContinueOnError)
	createAdminEmail := createAdminCmd.String("email", "", "The admin's email. The password will be prompted next.")

	setPasswordCmd := flag.NewFlagSet("setpassword", flag.ContinueOnError)
	setPasswordEmail := setPasswordCmd.String("email", "", "The identity's email. The password will be prompted next.")

	approveCmd := flag.NewFlagSet("approvepromoter", flag.ContinueOnError)
	approveID := approveCmd.String("id", "", "The promoter's account id.")

	settleCmd := flag.NewFlagSet("settle", flag.ContinueOnError)
	settleID := settleCmd.String("id", "", "The purchase id.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		if cli.db == nil {
			return errNoDatabase
		}
		return cli.migrate(args[2:])

	case "createadmin", "setpassword":
		cmd, email := createAdminCmd, createAdminEmail
		if args[1] == "setpassword" {
			cmd, email = setPasswordCmd, setPasswordEmail
		}
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *email == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			cmd.Usage()
			return errHelp
		}
		if args[1] == "createadmin" {
			return cli.createAdmin(*email, pwd)
		}
		return cli.setPassword(*email, pwd)

	case "approvepromoter":
		if err := approveCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *approveID == "" {
			approveCmd.Usage()
			return errHelp
		}
		return cli.approvePromoter(*approveID)

	case "settle":
		if err := settleCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *settleID == "" {
			settleCmd.Usage()
			return errHelp
		}
		return cli.settle(*settleID)

	case "orphans":
		return cli.orphans()

	default:
		cli.printUsage()
		return errHelp
	}
}
