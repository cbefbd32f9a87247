package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/lotbook"
	"github.com/google/subcommands"
)

// resolveStock finds a stock by ID, ISIN, symbol or company name.
func resolveStock(stocks *lotbook.Stocks, ref, exchange string) (lotbook.Stock, error) {
	if st, ok := stocks.Get(strings.ToUpper(ref)); ok {
		return st, nil
	}
	return stocks.Resolve(lotbook.StockRef{ISIN: ref, Symbol: ref, Name: ref, Exchange: exchange})
}

type tradeCmd struct {
	op        lotbook.Operation
	portfolio string
	stock     string
	exchange  string
	quantity  string
	price     string
	tax       string
	brokerage string
	date      string
	id        string
	note      string
}

func newTradeCmd(op lotbook.Operation) *tradeCmd { return &tradeCmd{op: op} }

func (c *tradeCmd) Name() string { return strings.ToLower(string(c.op)) }
func (c *tradeCmd) Synopsis() string {
	switch c.op {
	case lotbook.Sell:
		return "record the sale of a stock"
	case lotbook.Seed:
		return "record shares received without payment"
	default:
		return "record the purchase of a stock"
	}
}
func (c *tradeCmd) Usage() string {
	return fmt.Sprintf(`lotbook %s -p <portfolio> -s <stock> -q <quantity> -price <price> [-tax <tax>] [-brokerage <fee>] [-d <date>] [-id <trade id>]

  Records a %s trade. The stock is looked up by ID, ISIN, symbol or
  company name in the stock directory. With -id, a trade with the same ID in
  the portfolio is updated instead.
`, c.Name(), c.op)
}

func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "", "Portfolio.")
	f.StringVar(&c.stock, "s", "", "Stock ID, ISIN, symbol or company name.")
	f.StringVar(&c.exchange, "exchange", "", "Exchange of the stock, when listed on several.")
	f.StringVar(&c.quantity, "q", "", "Quantity of shares.")
	f.StringVar(&c.price, "price", "", "Price per share.")
	f.StringVar(&c.tax, "tax", "", "Taxes paid on the trade.")
	f.StringVar(&c.brokerage, "brokerage", "", "Brokerage fee paid on the trade.")
	f.StringVar(&c.date, "d", "", "Trade date, today by default.")
	f.StringVar(&c.id, "id", "", "External trade ID, unique within the portfolio.")
	f.StringVar(&c.note, "note", "", "Free text note.")
}

func (c *tradeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ts, err := timestamp(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	q, err := lotbook.ParseQuantity(c.quantity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing quantity: %v\n", err)
		return subcommands.ExitUsageError
	}
	var price, tax, brokerage lotbook.Money
	for _, m := range []struct {
		dst *lotbook.Money
		src string
	}{{&price, c.price}, {&tax, c.tax}, {&brokerage, c.brokerage}} {
		if *m.dst, err = parseMoney(m.src); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
	}

	a, err := openBook(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening book: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	p, err := a.portfolio(c.portfolio)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	stocks, err := a.stocks()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading stocks: %v\n", err)
		return subcommands.ExitFailure
	}
	st, err := resolveStock(stocks, c.stock, c.exchange)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	tr := lotbook.Trade{
		Operation:  c.op,
		Stock:      st.ID,
		Quantity:   q,
		Price:      price,
		Tax:        tax,
		Brokerage:  brokerage,
		Portfolio:  p.ID,
		Timestamp:  ts,
		Notes:      c.note,
		ExternalID: c.id,
	}
	verb := "Recorded"
	if c.id != "" {
		var created bool
		tr, created, err = a.book.UpsertTrade(ctx, tr)
		if !created {
			verb = "Updated"
		}
	} else {
		tr, err = a.book.AddTrade(ctx, tr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error recording trade: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("%s %s %v %s @ %v (%s)\n", verb, tr.Operation, tr.Quantity, tr.Stock, tr.Price, tr.ID)
	return subcommands.ExitSuccess
}

type rmTradeCmd struct{}

func (*rmTradeCmd) Name() string     { return "rm-trade" }
func (*rmTradeCmd) Synopsis() string { return "delete a trade and its transactions" }
func (*rmTradeCmd) Usage() string {
	return `lotbook rm-trade <trade id>

  Deletes a trade. The cash and assets it moved are given back.
`
}

func (*rmTradeCmd) SetFlags(*flag.FlagSet) {}

func (c *rmTradeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: rm-trade takes exactly one trade ID.")
		return subcommands.ExitUsageError
	}
	a, err := openBook(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening book: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if err := a.book.DeleteTrade(ctx, f.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error deleting trade: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Deleted trade %s\n", f.Arg(0))
	return subcommands.ExitSuccess
}

type dividendCmd struct {
	stock    string
	exchange string
	date     string
	amount   string
	currency string
}

func (*dividendCmd) Name() string     { return "dividend" }
func (*dividendCmd) Synopsis() string { return "record a per share dividend" }
func (*dividendCmd) Usage() string {
	return `lotbook dividend -s <stock> -d <record date> -amount <per share> [-c <currency>]

  Records a dividend paid per share to holders on the record date.
`
}

func (c *dividendCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.stock, "s", "", "Stock ID, ISIN, symbol or company name.")
	f.StringVar(&c.exchange, "exchange", "", "Exchange of the stock, when listed on several.")
	f.StringVar(&c.date, "d", "", "Record date.")
	f.StringVar(&c.amount, "amount", "", "Amount per share.")
	f.StringVar(&c.currency, "c", "", "Currency, defaults.currency of the configuration by default.")
}

func (c *dividendCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	cur := strings.ToUpper(c.currency)
	if cur == "" {
		cur = a.cfg.Defaults.Currency
	}
	amount, err := lotbook.ParseMoney(c.amount, cur)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	stocks, err := a.stocks()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading stocks: %v\n", err)
		return subcommands.ExitFailure
	}
	st, err := resolveStock(stocks, c.stock, c.exchange)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	d, err := a.book.AddDividend(ctx, lotbook.Dividend{RecordDate: on, Stock: st.ID, Amount: amount})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error recording dividend: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Recorded dividend of %v per share of %s on %v (%s)\n", d.Amount, d.Stock, d.RecordDate, d.ID)
	return subcommands.ExitSuccess
}
