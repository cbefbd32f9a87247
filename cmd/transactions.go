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

// cashFlags are the flags shared by cash movements.
type cashFlags struct {
	date   string
	amount string
	note   string
}

func (c *cashFlags) set(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "Transaction date, today by default.")
	f.StringVar(&c.amount, "amount", "", "Amount in the account currency.")
	f.StringVar(&c.note, "note", "", "Free text note.")
}

// apply records a cash transaction between two optional accounts.
func (c *cashFlags) apply(ctx context.Context, kind lotbook.Kind, source, destination string) subcommands.ExitStatus {
	ts, err := timestamp(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	amount, err := lotbook.ParseMoney(c.amount, "")
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

	tx := lotbook.Transaction{Kind: kind, Asset: lotbook.Cash, Amount: amount, Timestamp: ts, Notes: c.note}
	if source != "" {
		acc, err := a.account(source)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		tx.Source = acc.ID
	}
	if destination != "" {
		acc, err := a.account(destination)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		tx.Destination = acc.ID
	}
	tx, err = a.book.Apply(ctx, tx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error recording %s: %v\n", kind, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Recorded %s of %v (%s)\n", kind, tx.Amount, tx.ID)
	return subcommands.ExitSuccess
}

type depositCmd struct {
	cashFlags
	account string
}

func (*depositCmd) Name() string     { return "deposit" }
func (*depositCmd) Synopsis() string { return "credit cash into an account" }
func (*depositCmd) Usage() string {
	return `lotbook deposit -a <account> -amount <amount> [-d <date>] [-note <text>]

  Records a cash credit from outside the book.
`
}

func (c *depositCmd) SetFlags(f *flag.FlagSet) {
	c.cashFlags.set(f)
	f.StringVar(&c.account, "a", "", "Account credited.")
}

func (c *depositCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.apply(ctx, lotbook.Credit, "", c.account)
}

type withdrawCmd struct {
	cashFlags
	account string
}

func (*withdrawCmd) Name() string     { return "withdraw" }
func (*withdrawCmd) Synopsis() string { return "debit cash from an account" }
func (*withdrawCmd) Usage() string {
	return `lotbook withdraw -a <account> -amount <amount> [-d <date>] [-note <text>]

  Records a cash debit to outside the book. The account must hold the amount.
`
}

func (c *withdrawCmd) SetFlags(f *flag.FlagSet) {
	c.cashFlags.set(f)
	f.StringVar(&c.account, "a", "", "Account debited.")
}

func (c *withdrawCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.apply(ctx, lotbook.Debit, c.account, "")
}

type transferCmd struct {
	cashFlags
	from, to string
}

func (*transferCmd) Name() string     { return "transfer" }
func (*transferCmd) Synopsis() string { return "move cash between two accounts" }
func (*transferCmd) Usage() string {
	return `lotbook transfer -from <account> -to <account> -amount <amount> [-d <date>] [-note <text>]

  Moves cash between two accounts of the same currency.
`
}

func (c *transferCmd) SetFlags(f *flag.FlagSet) {
	c.cashFlags.set(f)
	f.StringVar(&c.from, "from", "", "Account debited.")
	f.StringVar(&c.to, "to", "", "Account credited.")
}

func (c *transferCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.apply(ctx, lotbook.Transfer, c.from, c.to)
}

type txCmd struct {
	account string
	head    int
	tail    int
}

func (*txCmd) Name() string     { return "tx" }
func (*txCmd) Synopsis() string { return "list transactions" }
func (*txCmd) Usage() string {
	return `lotbook tx [-a <account>] [-head <n>] [-tail <n>]

  Lists ledger transactions in insertion order.
`
}

func (c *txCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "a", "", "Only list transactions touching this account.")
	f.IntVar(&c.head, "head", 0, "Show only the first N transactions.")
	f.IntVar(&c.tail, "tail", 0, "Show only the last N transactions.")
}

func (c *txCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.head > 0 && c.tail > 0 {
		fmt.Fprintln(os.Stderr, "Error: -head and -tail flags cannot be used together.")
		return subcommands.ExitUsageError
	}
	a, err := openBook(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening book: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	account, err := a.accountID(c.account)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	var txs []lotbook.Transaction
	for _, tx := range a.book.Transactions() {
		if account == "" || tx.Source == account || tx.Destination == account {
			txs = append(txs, tx)
		}
	}
	if c.head > 0 && len(txs) > c.head {
		txs = txs[:c.head]
	}
	if c.tail > 0 && len(txs) > c.tail {
		txs = txs[len(txs)-c.tail:]
	}
	printMarkdown(renderer.RenderTransactions(renderer.NewLedger(txs, a.book.Accounts())))
	return subcommands.ExitSuccess
}

type rmTxCmd struct{}

func (*rmTxCmd) Name() string     { return "rm-tx" }
func (*rmTxCmd) Synopsis() string { return "delete a cash transaction" }
func (*rmTxCmd) Usage() string {
	return `lotbook rm-tx <transaction id>

  Deletes a transaction and reverses its effect on balances. Transactions
  recorded by a trade are deleted with the trade.
`
}

func (*rmTxCmd) SetFlags(*flag.FlagSet) {}

func (c *rmTxCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: rm-tx takes exactly one transaction ID.")
		return subcommands.ExitUsageError
	}
	a, err := openBook(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening book: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if err := a.book.DeleteTransaction(ctx, f.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error deleting transaction: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Deleted transaction %s\n", f.Arg(0))
	return subcommands.ExitSuccess
}
