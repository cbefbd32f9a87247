package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/lotbook"
	"github.com/etnz/lotbook/renderer"
	"github.com/google/subcommands"
)

type holdingsCmd struct {
	portfolio string
	date      string
}

func (*holdingsCmd) Name() string     { return "holdings" }
func (*holdingsCmd) Synopsis() string { return "display the open positions of portfolios" }
func (*holdingsCmd) Usage() string {
	return `lotbook holdings [-p <portfolio>] [-d <date>]

  Displays open positions, valued at cost with first in first out matching,
  as of the end of a day.
`
}

func (c *holdingsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "", "Portfolio, all portfolios by default.")
	f.StringVar(&c.date, "d", "", "Date of the report, today by default.")
}

func (c *holdingsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	portfolios := a.book.Portfolios()
	if c.portfolio != "" {
		p, err := a.portfolio(c.portfolio)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		portfolios = []lotbook.Portfolio{p}
	}
	s := a.book.Snapshot(on)
	var reports []string
	for _, p := range portfolios {
		reports = append(reports, renderer.RenderHoldings(renderer.NewHoldings(s, p)))
	}
	printMarkdown(strings.Join(reports, "\n"))
	return subcommands.ExitSuccess
}

type networthCmd struct {
	user string
	date string
}

func (*networthCmd) Name() string     { return "networth" }
func (*networthCmd) Synopsis() string { return "display the net worth and gains of a user" }
func (*networthCmd) Usage() string {
	return `lotbook networth [-user <user>] [-d <date>]

  Displays cash, invested value and gains of a user's accounts, one section
  per currency.
`
}

func (c *networthCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "User, defaults.user of the configuration by default.")
	f.StringVar(&c.date, "d", "", "Date of the report, today by default.")
}

func (c *networthCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	user := c.user
	if user == "" {
		user = a.cfg.Defaults.User
	}
	printMarkdown(renderer.RenderOverview(renderer.NewOverview(a.book.Snapshot(on), user, a.book.Accounts())))
	return subcommands.ExitSuccess
}
