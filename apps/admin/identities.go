package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/edumart/core"
)

// createAdmin registers the admin identity, or resets its password if it exists.
// The printed uid is the value of the ADMIN_UID setting.
func (cli *commandLine) createAdmin(email, pwd string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)

	ident, err := cli.identities.Register(ctx, email, pwd)
	switch {
	case errors.Is(err, core.ErrEmailTaken):
		if err = cli.identities.SetPassword(ctx, email, pwd); err != nil {
			return err
		}
		if ident, err = cli.identities.SignIn(ctx, email, pwd); err != nil {
			return err
		}
	case err != nil:
		return err
	}
	_, err = fmt.Fprintf(cli.out, "admin uid: %s\n", ident.UID)
	return err
}

func (cli *commandLine) setPassword(email, pwd string) error {
	email = core.CleanString(email, true /* lower */)
	return cli.identities.SetPassword(context.Background(), email, pwd)
}
