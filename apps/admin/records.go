package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) approvePromoter(id string) error {
	acct, err := cli.accounts.ApprovePromoter(context.Background(), id)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cli.out, "approved %s (%s)\n", acct.UniqueID, acct.Email)
	return err
}

func (cli *commandLine) settle(id string) error {
	p, err := cli.purchases.Settle(context.Background(), id)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cli.out, "purchase %s: %s, commission %.2f\n", p.ID, p.SettlementStatus, p.Commission)
	return err
}

// orphans lists the ledger entries a student cannot see, one per line.
func (cli *commandLine) orphans() error {
	orphans, err := cli.purchases.FindOrphans(context.Background())
	if err != nil {
		return err
	}
	for _, p := range orphans {
		if _, err = fmt.Fprintf(cli.out, "%s\tpayment=%s\tstudent=%s\tpackage=%s\n",
			p.ID, p.PaymentID, p.StudentID, p.PackageID); err != nil {
			return err
		}
	}
	return nil
}
