package lotbook

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/etnz/lotbook/date"
	"github.com/sirupsen/logrus"
)

// INR is a helper for test to create rupees from a decimal string.
func INR(v string) Money { return must(ParseMoney(v, "INR")) }

// qty is a helper for test to create a quantity from a decimal string.
func qty(v string) Quantity { return must(ParseQuantity(v)) }

// on returns noon UTC of a day given as YYYY-MM-DD.
func on(day string) time.Time { return date.MustParse(day).Time().Add(12 * time.Hour) }

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fixture is a book with a bank, a broker linked to a demat account, and a
// portfolio on the broker.
type fixture struct {
	t      *testing.T
	ctx    context.Context
	book   *Book
	bank   Account
	broker Account
	demat  Account
	pf     Portfolio
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	b := NewBook(append([]Option{WithLogger(quiet())}, opts...)...)
	f := &fixture{t: t, ctx: ctx, book: b}
	f.bank = must(b.CreateAccount(ctx, Account{Name: "bank", Entity: Bank, User: "alice"}))
	f.demat = must(b.CreateAccount(ctx, Account{Name: "demat", Entity: Demat, User: "alice"}))
	f.broker = must(b.CreateAccount(ctx, Account{Name: "broker", Entity: Broker, User: "alice", Custody: f.demat.ID}))
	f.pf = must(b.CreatePortfolio(ctx, Portfolio{Name: "main", Account: f.broker.ID}))
	return f
}

// deposit credits cash into account.
func (f *fixture) deposit(account string, amount string, ts time.Time) Transaction {
	f.t.Helper()
	tx, err := f.book.Apply(f.ctx, Transaction{Kind: Credit, Asset: Cash, Destination: account, Amount: INR(amount), Timestamp: ts})
	if err != nil {
		f.t.Fatalf("deposit(%s) error = %v", amount, err)
	}
	return tx
}

// trade adds a trade to the fixture portfolio.
func (f *fixture) trade(op Operation, stock, quantity, price string, ts time.Time) Trade {
	f.t.Helper()
	tr, err := f.book.AddTrade(f.ctx, Trade{Operation: op, Stock: stock, Quantity: qty(quantity), Price: INR(price), Portfolio: f.pf.ID, Timestamp: ts})
	if err != nil {
		f.t.Fatalf("AddTrade(%s %s %s@%s) error = %v", op, stock, quantity, price, err)
	}
	return tr
}

// balance returns the current cash balance of an account.
func (f *fixture) balance(id string) Money {
	f.t.Helper()
	a, ok := f.book.Account(id)
	if !ok {
		f.t.Fatalf("account %q not found", id)
	}
	return a.Balance
}

// recordingJournal keeps every committed changeset, or fails when err is set.
type recordingJournal struct {
	commits []*Changeset
	err     error
}

func (j *recordingJournal) Commit(_ context.Context, cs *Changeset) error {
	if j.err != nil {
		return j.err
	}
	j.commits = append(j.commits, cs)
	return nil
}
