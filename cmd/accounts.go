package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/lotbook"
	"github.com/etnz/lotbook/renderer"
	"github.com/google/subcommands"
)

type accountsCmd struct {
	date string
	user string
}

func (*accountsCmd) Name() string     { return "accounts" }
func (*accountsCmd) Synopsis() string { return "list accounts and their cash balance" }
func (*accountsCmd) Usage() string {
	return `lotbook accounts [-d <date>] [-user <user>]

  Lists accounts with their cash balance on a given date.
`
}

func (c *accountsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "Date of the balances, today by default.")
	f.StringVar(&c.user, "user", "", "Only list accounts of this user.")
}

func (c *accountsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	on, err := parseDate(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	a, err := openBook(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening book: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	var accounts []lotbook.Account
	for _, acc := range a.book.Accounts() {
		if c.user == "" || acc.User == c.user {
			accounts = append(accounts, acc)
		}
	}
	printMarkdown(renderer.RenderAccounts(renderer.NewAccounts(a.book.Snapshot(on), accounts)))
	return subcommands.ExitSuccess
}

type accountCmd struct {
	entity   string
	name     string
	number   string
	user     string
	currency string
	parent   string
	custody  string
}

func (*accountCmd) Name() string     { return "account" }
func (*accountCmd) Synopsis() string { return "create an account" }
func (*accountCmd) Usage() string {
	return `lotbook account -type <type> -name <name> [-number <n>] [-user <user>] [-c <currency>] [-parent <account>] [-custody <account>]

  Creates an account. Types are BANK, BROKER, EXCHANGE, DEMAT, COMMODITY,
  CRYPTO, LOCKER, DEPOSIT and VIRTUAL-SUB.
`
}

func (c *accountCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.entity, "type", "", "Account type.")
	f.StringVar(&c.name, "name", "", "Account name.")
	f.StringVar(&c.number, "number", "", "External account number.")
	f.StringVar(&c.user, "user", "", "Account owner, defaults.user of the configuration by default.")
	f.StringVar(&c.currency, "c", "", "Account currency, defaults.currency of the configuration by default.")
	f.StringVar(&c.parent, "parent", "", "Parent account, for virtual sub-accounts.")
	f.StringVar(&c.custody, "custody", "", "Custody account holding the assets bought from this account.")
}

func (c *accountCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	entity, err := lotbook.ParseEntityType(c.entity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	a, err := openBook(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening book: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	parent, err := a.accountID(c.parent)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	custody, err := a.accountID(c.custody)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	user := c.user
	if user == "" {
		user = a.cfg.Defaults.User
	}
	acc, err := a.book.CreateAccount(ctx, lotbook.Account{
		Name:     c.name,
		Number:   c.number,
		Entity:   entity,
		User:     user,
		Currency: c.currency,
		Parent:   parent,
		Custody:  custody,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating account: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Created %s account %q (%s)\n", acc.Entity, acc.Name, acc.ID)
	return subcommands.ExitSuccess
}

type linkCmd struct {
	account string
	custody string
	parent  string
	name    string
}

func (*linkCmd) Name() string     { return "link" }
func (*linkCmd) Synopsis() string { return "rename an account or change its custody or parent account" }
func (*linkCmd) Usage() string {
	return `lotbook link -a <account> [-custody <account>] [-parent <account>] [-name <name>]

  Updates the links of an account. Use "-" to clear a link.
`
}

func (c *linkCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "a", "", "Account to update.")
	f.StringVar(&c.custody, "custody", "", "New custody account.")
	f.StringVar(&c.parent, "parent", "", "New parent account.")
	f.StringVar(&c.name, "name", "", "New account name.")
}

func (c *linkCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openBook(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening book: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	acc, err := a.account(c.account)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	resolve := func(ref, current string) (string, error) {
		switch ref {
		case "":
			return current, nil
		case "-":
			return "", nil
		}
		return a.accountID(ref)
	}
	if acc.Custody, err = resolve(c.custody, acc.Custody); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if acc.Parent, err = resolve(c.parent, acc.Parent); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if c.name != "" {
		acc.Name = c.name
	}
	if _, err := a.book.UpdateAccount(ctx, acc); err != nil {
		fmt.Fprintf(os.Stderr, "Error updating account: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Updated account %q\n", acc.Name)
	return subcommands.ExitSuccess
}

type rmAccountCmd struct{}

func (*rmAccountCmd) Name() string     { return "rm-account" }
func (*rmAccountCmd) Synopsis() string { return "delete an account and everything recorded on it" }
func (*rmAccountCmd) Usage() string {
	return `lotbook rm-account <account>

  Deletes an account, its sub-accounts, their portfolios and trades. Other
  transactions touching them are reversed.
`
}

func (*rmAccountCmd) SetFlags(*flag.FlagSet) {}

func (c *rmAccountCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: rm-account takes exactly one account.")
		return subcommands.ExitUsageError
	}
	a, err := openBook(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening book: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	acc, err := a.account(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if err := a.book.DeleteAccount(ctx, acc.ID); err != nil {
		fmt.Fprintf(os.Stderr, "Error deleting account: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Deleted account %q\n", acc.Name)
	return subcommands.ExitSuccess
}
