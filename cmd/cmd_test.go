package cmd

import (
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/etnz/lotbook"
	"github.com/etnz/lotbook/config"
	"github.com/etnz/lotbook/date"
	"github.com/etnz/lotbook/sqlstore"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stocksYAML = `
- symbol: INFY
  exchange: NSE
  isin: INE009A01021
  name: Infosys
- symbol: INFY
  exchange: BSE
  isin: INE009A01021
  name: Infosys
  sid: "500209"
`

const splitsJSON = `[{"stock": "Infosys", "ex-date": "2024-03-01", "old-face-value": 10, "new-face-value": 5, "isin": "INE009A01021"}]`

// env is a configured context on a temporary database.
type env struct {
	t   *testing.T
	ctx context.Context
	cfg *config.Config
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}
	cfg := &config.Config{
		Database: config.DatabaseConfig{Path: filepath.Join(dir, "book.db")},
		Defaults: config.DefaultsConfig{Currency: "INR", User: "alice"},
		Stocks:   config.StocksConfig{File: write("stocks.yaml", stocksYAML)},
		Feeds: config.FeedsConfig{
			Splits: config.FeedConfig{Source: write("splits.json", splitsJSON), Path: "$"},
			Cache:  dir,
		},
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	ctx := context.WithValue(context.Background(), configKey{}, cfg)
	ctx = config.WithLogger(ctx, log)

	// reports go to stdout
	stdout := os.Stdout
	devnull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	require.NoError(t, err)
	os.Stdout = devnull
	t.Cleanup(func() {
		os.Stdout = stdout
		devnull.Close()
	})
	return &env{t: t, ctx: ctx, cfg: cfg}
}

// run executes a command line and returns its exit status.
func (e *env) run(args ...string) subcommands.ExitStatus {
	e.t.Helper()
	fs := flag.NewFlagSet("lotbook", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cdr := subcommands.NewCommander(fs, "lotbook")
	cdr.Error = io.Discard
	cdr.Output = io.Discard
	Register(cdr)
	require.NoError(e.t, fs.Parse(args))
	return cdr.Execute(e.ctx)
}

func (e *env) mustRun(args ...string) {
	e.t.Helper()
	require.Equal(e.t, subcommands.ExitSuccess, e.run(args...), "%v", args)
}

// state reads the database.
func (e *env) state() *lotbook.State {
	e.t.Helper()
	s, err := sqlstore.Open(e.ctx, e.cfg.Database.Path, config.LoggerFromContext(e.ctx))
	require.NoError(e.t, err)
	defer s.Close()
	st, err := s.Load(e.ctx)
	require.NoError(e.t, err)
	return st
}

func (e *env) book() *lotbook.Book {
	return lotbook.NewBook(lotbook.WithState(e.state()), lotbook.WithLogger(config.LoggerFromContext(e.ctx)))
}

func TestCommands_TradingSession(t *testing.T) {
	e := newEnv(t)
	e.mustRun("account", "-type", "bank", "-name", "hdfc")
	e.mustRun("account", "-type", "demat", "-name", "cdsl")
	e.mustRun("account", "-type", "broker", "-name", "zerodha", "-custody", "cdsl")
	e.mustRun("portfolio", "-a", "zerodha", "-name", "main")
	e.mustRun("deposit", "-a", "hdfc", "-amount", "10000", "-d", "2024-01-01")
	e.mustRun("transfer", "-from", "hdfc", "-to", "zerodha", "-amount", "6000", "-d", "2024-01-02")
	e.mustRun("buy", "-p", "main", "-s", "INFY", "-exchange", "NSE", "-q", "10", "-price", "500", "-tax", "5", "-d", "2024-01-03", "-id", "T1")
	e.mustRun("buy", "-p", "main", "-s", "INE009A01021", "-exchange", "NSE", "-q", "10", "-price", "500", "-tax", "5", "-d", "2024-01-03", "-id", "T1")
	e.mustRun("dividend", "-s", "INFY.NSE", "-d", "2024-02-01", "-amount", "5")

	assert.Equal(t, subcommands.ExitFailure, e.run("withdraw", "-a", "hdfc", "-amount", "5000"), "insufficient funds")
	assert.Equal(t, subcommands.ExitUsageError, e.run("buy", "-p", "main", "-s", "WIPRO", "-q", "1", "-price", "1"))

	b := e.book()
	require.Len(t, b.Trades(), 1, "a trade ID is recorded once")
	var broker lotbook.Account
	for _, a := range b.Accounts() {
		if a.Name == "zerodha" {
			broker = a
		}
	}
	assert.Equal(t, "995", broker.Balance.Decimal().String())

	e.mustRun("holdings", "-d", "2024-12-31")
	e.mustRun("networth", "-d", "2024-12-31")
	e.mustRun("accounts")
	e.mustRun("tx", "-a", "hdfc")

	e.mustRun("reconcile", "-apply")
	e.mustRun("reconcile", "-apply")
	b = e.book()
	require.Len(t, b.Trades(), 2, "reconciliation is recorded once")
	pf := b.Portfolios()[0]
	held := b.Snapshot(date.New(2024, 12, 31)).Held(pf.ID, "INFY.NSE", date.New(2024, 12, 31))
	assert.Equal(t, "20", held.String())

	tr := b.Trades()[0]
	e.mustRun("rm-trade", tr.ID)
	e.mustRun("rm-portfolio", "main")
	assert.Empty(t, e.state().Portfolios)
}

func TestCommands_Import(t *testing.T) {
	e := newEnv(t)
	e.mustRun("account", "-type", "demat", "-name", "cdsl")
	e.mustRun("account", "-type", "broker", "-name", "zerodha", "-custody", "cdsl")
	e.mustRun("portfolio", "-a", "zerodha", "-name", "main")
	e.mustRun("deposit", "-a", "zerodha", "-amount", "100000", "-d", "2023-12-01")

	file := filepath.Join(t.TempDir(), "trades.json")
	require.NoError(t, os.WriteFile(file, []byte(`[
	  {"trade_id": "A", "operation": "BUY", "stock": {"symbol": "INFY", "exchange": "NSE"}, "quantity": "10",
	   "price": {"amount": "100"}, "timestamp": "2024-01-02T10:00:00+05:30"},
	  {"trade_id": "B", "portfolio": "main", "operation": "SELL", "stock": {"isin": "INE009A01021", "exchange": "NSE"}, "quantity": "5",
	   "price": {"amount": "120"}, "timestamp": "2024-02-02T10:00:00+05:30"}
	]`), 0o644))

	e.mustRun("import", "-p", "main", "-reconcile", file)
	e.mustRun("import", "-p", "main", "-reconcile", file)
	trades := e.book().Trades()
	require.Len(t, trades, 3)
	assert.Equal(t, lotbook.ReconcileID("INFY.NSE", date.New(2024, 3, 1)), trades[2].ExternalID)
	assert.Equal(t, "5", trades[2].Quantity.String())

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"trade_id": "C", "operation": "BUY", "stock": {"symbol": "NOPE"}, "quantity": "1",
	  "price": {"amount": "1"}, "timestamp": "2024-01-02T10:00:00Z"}]`), 0o644))
	assert.Equal(t, subcommands.ExitFailure, e.run("import", "-p", "main", bad))
}

func TestCommands_AccountLinks(t *testing.T) {
	e := newEnv(t)
	e.mustRun("account", "-type", "bank", "-name", "hdfc")
	e.mustRun("account", "-type", "virtual-sub", "-name", "savings", "-parent", "hdfc")
	e.mustRun("link", "-a", "savings", "-name", "rainy day")
	e.mustRun("link", "-a", "rainy day", "-parent", "-")
	assert.Equal(t, subcommands.ExitUsageError, e.run("account", "-type", "castle", "-name", "x"))
	assert.Equal(t, subcommands.ExitUsageError, e.run("rm-account", "nope"))

	accounts := e.book().Accounts()
	require.Len(t, accounts, 2)
	assert.Equal(t, "rainy day", accounts[1].Name)
	assert.Empty(t, accounts[1].Parent)

	e.mustRun("rm-account", "hdfc")
	assert.Len(t, e.state().Accounts, 1)
}

func TestTimestamp(t *testing.T) {
	ts, err := timestamp("2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, date.New(2024, 1, 2), date.Of(ts))
	assert.Equal(t, 12, ts.Hour())

	_, err = timestamp("yesterday")
	assert.Error(t, err)
}

func TestCompletion(t *testing.T) {
	cdr := subcommands.NewCommander(flag.NewFlagSet("lotbook", flag.ContinueOnError), "lotbook")
	Register(cdr)
	c := Completion(cdr)
	require.Contains(t, c.Sub, "buy")
	assert.Contains(t, c.Sub["buy"].Flags, "price")
	assert.Contains(t, c.Sub["reconcile"].Flags, "apply")
	assert.NotNil(t, c.Sub["import"].Args)
}
