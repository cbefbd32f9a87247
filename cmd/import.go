package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/lotbook"
	"github.com/etnz/lotbook/renderer"
	"github.com/google/subcommands"
)

type importCmd struct {
	portfolio string
	reconcile bool
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import trades from a JSON file" }
func (*importCmd) Usage() string {
	return `lotbook import [-p <portfolio>] [-reconcile] <file.json>

  Imports a JSON array of trades:

    [{"trade_id": "T1", "portfolio": "main", "operation": "BUY",
      "stock": {"symbol": "INFY", "exchange": "NSE"}, "quantity": "10",
      "price": {"amount": "1450.5"}, "timestamp": "2024-01-02T10:00:00+05:30"}]

  Trades are matched on their portfolio and trade_id: importing a file again
  updates the trades instead of duplicating them. With -reconcile, the
  quantities are adjusted for later splits and bonus issues.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "", "Portfolio of the trades that do not name one.")
	f.BoolVar(&c.reconcile, "reconcile", false, "Add the trades compensating splits and bonus issues.")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: import takes exactly one file.")
		return subcommands.ExitUsageError
	}
	content, err := os.ReadFile(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	var intents []lotbook.TradeIntent
	if err := json.Unmarshal(content, &intents); err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding %s: %v\n", f.Arg(0), err)
		return subcommands.ExitFailure
	}

	a, err := openBook(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening book: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	// portfolios may be given by name
	for i, in := range intents {
		ref := in.Portfolio
		if ref == "" {
			ref = c.portfolio
		}
		if ref == "" {
			continue
		}
		if p, err := a.portfolio(ref); err == nil {
			intents[i].Portfolio = p.ID
		}
	}

	stocks, err := a.stocks()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading stocks: %v\n", err)
		return subcommands.ExitFailure
	}
	var opts lotbook.ImportOptions
	if c.reconcile {
		feed, err := a.feed(ctx, stocks)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading corporate actions: %v\n", err)
			return subcommands.ExitFailure
		}
		if feed == nil {
			fmt.Fprintln(os.Stderr, "Error: -reconcile needs feeds.splits.source or feeds.bonus.source in the configuration.")
			return subcommands.ExitUsageError
		}
		opts.Actions = feed
	}

	report, err := a.book.Import(ctx, stocks, intents, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error importing: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(renderer.RenderImport(renderer.NewImport(report)))
	if report.Failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type reconcileCmd struct {
	portfolio string
	apply     bool
	refresh   bool
}

func (*reconcileCmd) Name() string     { return "reconcile" }
func (*reconcileCmd) Synopsis() string { return "adjust holdings for splits and bonus issues" }
func (*reconcileCmd) Usage() string {
	return `lotbook reconcile [-p <portfolio>] [-apply] [-refresh]

  Lists the zero price trades that bring holdings in line with the splits
  and bonus issues of the configured feeds. With -apply they are recorded;
  running it again updates them instead of duplicating them.
`
}

func (c *reconcileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "", "Only reconcile this portfolio.")
	f.BoolVar(&c.apply, "apply", false, "Record the reconciliation trades.")
	f.BoolVar(&c.refresh, "refresh", false, "Read the feeds again even if cached today.")
}

func (c *reconcileCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openBook(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening book: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	var portfolio string
	if c.portfolio != "" {
		p, err := a.portfolio(c.portfolio)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		portfolio = p.ID
	}
	stocks, err := a.stocks()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading stocks: %v\n", err)
		return subcommands.ExitFailure
	}
	feed, err := a.feed(ctx, stocks)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading corporate actions: %v\n", err)
		return subcommands.ExitFailure
	}
	if feed == nil {
		fmt.Fprintln(os.Stderr, "Error: no corporate action feed configured, set feeds.splits.source or feeds.bonus.source.")
		return subcommands.ExitUsageError
	}
	if c.refresh {
		if err := feed.Refresh(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error refreshing corporate actions: %v\n", err)
			return subcommands.ExitFailure
		}
	}

	var trades []lotbook.Trade
	for _, tr := range a.book.Trades() {
		if portfolio == "" || tr.Portfolio == portfolio {
			trades = append(trades, tr)
		}
	}
	recon, err := lotbook.Reconcile(ctx, trades, feed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reconciling: %v\n", err)
		return subcommands.ExitFailure
	}
	if c.apply {
		for i, tr := range recon {
			stored, _, err := a.book.UpsertTrade(ctx, tr)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error recording %s: %v\n", tr.ExternalID, err)
				return subcommands.ExitFailure
			}
			recon[i] = stored
		}
	}
	printMarkdown(renderer.RenderReconciliation(&renderer.Reconciliation{Trades: recon}))
	return subcommands.ExitSuccess
}
