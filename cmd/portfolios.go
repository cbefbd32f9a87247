package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/lotbook"
	"github.com/google/subcommands"
)

type portfolioCmd struct {
	account string
	name    string
	parent  string
}

func (*portfolioCmd) Name() string     { return "portfolio" }
func (*portfolioCmd) Synopsis() string { return "create a portfolio" }
func (*portfolioCmd) Usage() string {
	return `lotbook portfolio -a <account> -name <name> [-parent <portfolio>]

  Creates a portfolio on a broker, demat, commodity or crypto account.
`
}

func (c *portfolioCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "a", "", "Account the portfolio trades from.")
	f.StringVar(&c.name, "name", "", "Portfolio name.")
	f.StringVar(&c.parent, "parent", "", "Parent portfolio.")
}

func (c *portfolioCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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
	var parent string
	if c.parent != "" {
		p, err := a.portfolio(c.parent)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		parent = p.ID
	}
	p, err := a.book.CreatePortfolio(ctx, lotbook.Portfolio{Name: c.name, Account: acc.ID, Parent: parent})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating portfolio: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Created portfolio %q (%s) on %q\n", p.Name, p.ID, acc.Name)
	return subcommands.ExitSuccess
}

type renamePortfolioCmd struct {
	name   string
	parent string
}

func (*renamePortfolioCmd) Name() string     { return "mv-portfolio" }
func (*renamePortfolioCmd) Synopsis() string { return "rename a portfolio or move it under another one" }
func (*renamePortfolioCmd) Usage() string {
	return `lotbook mv-portfolio [-name <name>] [-parent <portfolio>|-] <portfolio>

  Renames a portfolio or changes its parent. Use "-" to make it a top level portfolio.
`
}

func (c *renamePortfolioCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "New name.")
	f.StringVar(&c.parent, "parent", "", "New parent portfolio.")
}

func (c *renamePortfolioCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: mv-portfolio takes exactly one portfolio.")
		return subcommands.ExitUsageError
	}
	a, err := openBook(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening book: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	p, err := a.portfolio(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	name, parent := p.Name, p.Parent
	if c.name != "" {
		name = c.name
	}
	switch c.parent {
	case "":
	case "-":
		parent = ""
	default:
		pp, err := a.portfolio(c.parent)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		parent = pp.ID
	}
	if _, err := a.book.RenamePortfolio(ctx, p.ID, name, parent); err != nil {
		fmt.Fprintf(os.Stderr, "Error updating portfolio: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Updated portfolio %q\n", name)
	return subcommands.ExitSuccess
}

type rmPortfolioCmd struct{}

func (*rmPortfolioCmd) Name() string     { return "rm-portfolio" }
func (*rmPortfolioCmd) Synopsis() string { return "delete a portfolio, its sub-portfolios and their trades" }
func (*rmPortfolioCmd) Usage() string {
	return `lotbook rm-portfolio <portfolio>

  Deletes a portfolio with its sub-portfolios. Their trades are deleted and
  the cash they moved is given back.
`
}

func (*rmPortfolioCmd) SetFlags(*flag.FlagSet) {}

func (c *rmPortfolioCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: rm-portfolio takes exactly one portfolio.")
		return subcommands.ExitUsageError
	}
	a, err := openBook(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening book: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	p, err := a.portfolio(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if err := a.book.DeletePortfolio(ctx, p.ID); err != nil {
		fmt.Fprintf(os.Stderr, "Error deleting portfolio: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Deleted portfolio %q\n", p.Name)
	return subcommands.ExitSuccess
}
