// Package cmd implements the lotbook command line.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/etnz/lotbook"
	"github.com/etnz/lotbook/config"
	"github.com/etnz/lotbook/corpaction"
	"github.com/etnz/lotbook/date"
	"github.com/etnz/lotbook/sqlstore"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&accountsCmd{}, "accounts")
	c.Register(&accountCmd{}, "accounts")
	c.Register(&linkCmd{}, "accounts")
	c.Register(&rmAccountCmd{}, "accounts")

	c.Register(&portfolioCmd{}, "portfolios")
	c.Register(&renamePortfolioCmd{}, "portfolios")
	c.Register(&rmPortfolioCmd{}, "portfolios")

	c.Register(&depositCmd{}, "transactions")
	c.Register(&withdrawCmd{}, "transactions")
	c.Register(&transferCmd{}, "transactions")
	c.Register(&txCmd{}, "transactions")
	c.Register(&rmTxCmd{}, "transactions")

	c.Register(newTradeCmd(lotbook.Buy), "trades")
	c.Register(newTradeCmd(lotbook.Sell), "trades")
	c.Register(newTradeCmd(lotbook.Seed), "trades")
	c.Register(&rmTradeCmd{}, "trades")
	c.Register(&importCmd{}, "trades")
	c.Register(&reconcileCmd{}, "trades")
	c.Register(&dividendCmd{}, "trades")

	c.Register(&holdingsCmd{}, "reports")
	c.Register(&networthCmd{}, "reports")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var configFile = flag.String("config", "", "Path to the configuration file. Defaults to lotbook.yaml in the current directory or in $HOME/.lotbook")

type configKey struct{}

// Setup loads the configuration and the logger into the context passed to
// subcommands.
func Setup(ctx context.Context) (context.Context, error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return ctx, err
	}
	log, err := config.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	if err != nil {
		return ctx, err
	}
	ctx = context.WithValue(ctx, configKey{}, cfg)
	return config.WithLogger(ctx, log), nil
}

func configFrom(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	cfg, err := config.Load(*configFile)
	if err != nil {
		return &config.Config{Database: config.DatabaseConfig{Path: "lotbook.db"}, Defaults: config.DefaultsConfig{Currency: lotbook.DefaultCurrency}}
	}
	return cfg
}

// app is the opened book and its configuration.
type app struct {
	cfg   *config.Config
	log   *logrus.Logger
	store *sqlstore.Store
	book  *lotbook.Book
}

// openBook opens the configured database and loads the book.
func openBook(ctx context.Context) (*app, error) {
	cfg := configFrom(ctx)
	log := config.LoggerFromContext(ctx)
	store, err := sqlstore.Open(ctx, cfg.Database.Path, log)
	if err != nil {
		return nil, err
	}
	state, err := store.Load(ctx)
	if err != nil {
		store.Close()
		return nil, err
	}
	book := lotbook.NewBook(
		lotbook.WithState(state),
		lotbook.WithJournal(store),
		lotbook.WithLogger(log),
		lotbook.WithCurrency(cfg.Defaults.Currency),
	)
	return &app{cfg: cfg, log: log, store: store, book: book}, nil
}

func (a *app) Close() error { return a.store.Close() }

// stocks loads the stock directory. A missing file is an empty directory.
func (a *app) stocks() (*lotbook.Stocks, error) {
	f, err := os.Open(a.cfg.Stocks.File)
	if errors.Is(err, fs.ErrNotExist) {
		a.log.WithField("file", a.cfg.Stocks.File).Warn("stock directory not found, using an empty one")
		return lotbook.NewStocks()
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return lotbook.LoadStocks(f)
}

// feed returns the configured corporate action feed, nil when none is configured.
func (a *app) feed(ctx context.Context, stocks *lotbook.Stocks) (*corpaction.Feed, error) {
	client := corpaction.Daily(a.cfg.Feeds.Cache, a.log)
	var configs []corpaction.Config
	for _, f := range []struct {
		kind lotbook.ActionKind
		cfg  config.FeedConfig
	}{
		{lotbook.Split, a.cfg.Feeds.Splits},
		{lotbook.Bonus, a.cfg.Feeds.Bonus},
	} {
		if f.cfg.Source == "" {
			continue
		}
		fields := corpaction.Fields{
			Name:   f.cfg.Fields.Name,
			Symbol: f.cfg.Fields.Symbol,
			SID:    f.cfg.Fields.SID,
			ISIN:   f.cfg.Fields.ISIN,
			ExDate: f.cfg.Fields.ExDate,
			OldFV:  f.cfg.Fields.OldFV,
			NewFV:  f.cfg.Fields.NewFV,
			Ratio:  f.cfg.Fields.Ratio,
		}
		configs = append(configs, corpaction.Config{Kind: f.kind, Source: corpaction.NewSource(f.cfg.Source, client), Records: f.cfg.Path, Fields: fields})
	}
	if len(configs) == 0 {
		return nil, nil
	}
	feed := corpaction.New(stocks, a.log, configs...)
	if err := feed.Load(ctx); err != nil {
		return nil, err
	}
	return feed, nil
}

// account finds an account by ID or by name.
func (a *app) account(ref string) (lotbook.Account, error) {
	if acc, ok := a.book.Account(ref); ok {
		return acc, nil
	}
	var found []lotbook.Account
	for _, acc := range a.book.Accounts() {
		if strings.EqualFold(acc.Name, ref) {
			found = append(found, acc)
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return lotbook.Account{}, fmt.Errorf("account %q: %w", ref, lotbook.ErrAccountNotFound)
	default:
		return lotbook.Account{}, fmt.Errorf("account name %q is ambiguous, use its ID", ref)
	}
}

// accountID is like account but accepts an empty reference.
func (a *app) accountID(ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	acc, err := a.account(ref)
	return acc.ID, err
}

// portfolio finds a portfolio by ID or by name.
func (a *app) portfolio(ref string) (lotbook.Portfolio, error) {
	if p, ok := a.book.Portfolio(ref); ok {
		return p, nil
	}
	var found []lotbook.Portfolio
	for _, p := range a.book.Portfolios() {
		if strings.EqualFold(p.Name, ref) {
			found = append(found, p)
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return lotbook.Portfolio{}, fmt.Errorf("portfolio %q: %w", ref, lotbook.ErrPortfolioNotFound)
	default:
		return lotbook.Portfolio{}, fmt.Errorf("portfolio name %q is ambiguous, use its ID", ref)
	}
}

// timestamp returns the time recorded for an operation dated on.
// Operations dated today keep the current time, others are set at noon UTC.
func timestamp(on string) (time.Time, error) {
	if on == "" {
		return time.Now(), nil
	}
	d, err := date.Parse(on)
	if err != nil {
		return time.Time{}, err
	}
	if d == date.Today() {
		return time.Now(), nil
	}
	return d.Time().Add(12 * time.Hour), nil
}

// parseDate parses a report date, today when empty.
func parseDate(on string) (date.Date, error) {
	if on == "" {
		return date.Today(), nil
	}
	return date.Parse(on)
}

// parseMoney parses an optional amount, zero when empty. The currency is
// left to the account.
func parseMoney(s string) (lotbook.Money, error) {
	if s == "" {
		return lotbook.M(0, ""), nil
	}
	return lotbook.ParseMoney(s, "")
}
