package lotbook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is the full content of a Book, as loaded from a store.
type State struct {
	Accounts     []Account
	Portfolios   []Portfolio
	Transactions []Transaction
	Trades       []Trade
	Links        []TradeLink
	Dividends    []Dividend
}

// Changeset is the net effect of one Book mutation.
//
// Records are listed in write order. Versions holds, for every existing
// account in Accounts, the version it had before the change.
type Changeset struct {
	Accounts     []Account
	Portfolios   []Portfolio
	Transactions []Transaction
	Trades       []Trade
	Links        []TradeLink
	Dividends    []Dividend

	DeletedAccounts     []string
	DeletedPortfolios   []string
	DeletedTransactions []string
	DeletedTrades       []string
	DeletedLinks        []string // transaction IDs
	DeletedDividends    []string

	Versions map[string]int64
}

// Empty reports whether the changeset changes nothing.
func (cs *Changeset) Empty() bool {
	return len(cs.Accounts)+len(cs.Portfolios)+len(cs.Transactions)+len(cs.Trades)+len(cs.Links)+len(cs.Dividends)+
		len(cs.DeletedAccounts)+len(cs.DeletedPortfolios)+len(cs.DeletedTransactions)+len(cs.DeletedTrades)+
		len(cs.DeletedLinks)+len(cs.DeletedDividends) == 0
}

// Journal persists changesets. Commit must store the whole changeset or
// nothing.
type Journal interface {
	Commit(ctx context.Context, cs *Changeset) error
}

type discardJournal struct{}

func (discardJournal) Commit(context.Context, *Changeset) error { return nil }

// Book is the ledger store: it owns accounts, portfolios, transactions,
// trades and dividends, and is the only place where balances change.
//
// Mutations are serialized, validated against a staged copy, committed to
// the Journal and only then made visible. Readers work on Snapshots.
type Book struct {
	mu           sync.RWMutex
	accounts     map[string]Account
	portfolios   map[string]Portfolio
	transactions map[string]Transaction
	trades       map[string]Trade
	links        map[string]TradeLink // by transaction ID
	dividends    map[string]Dividend
	seq          int64

	journal  Journal
	log      logrus.FieldLogger
	currency string
	now      func() time.Time
}

// Option configures a Book.
type Option func(*Book)

// WithJournal sets where changesets are persisted. By default they are not.
func WithJournal(j Journal) Option { return func(b *Book) { b.journal = j } }

// WithLogger sets the book logger.
func WithLogger(l logrus.FieldLogger) Option { return func(b *Book) { b.log = l } }

// WithCurrency sets the currency of accounts created without one.
func WithCurrency(cur string) Option { return func(b *Book) { b.currency = cur } }

// WithState preloads the book.
func WithState(s *State) Option {
	return func(b *Book) {
		for _, a := range s.Accounts {
			b.accounts[a.ID] = a
		}
		for _, p := range s.Portfolios {
			b.portfolios[p.ID] = p
		}
		for _, tx := range s.Transactions {
			b.transactions[tx.ID] = tx
			b.seq = max(b.seq, tx.Seq)
		}
		for _, tr := range s.Trades {
			b.trades[tr.ID] = tr
			b.seq = max(b.seq, tr.Seq)
		}
		for _, l := range s.Links {
			b.links[l.Transaction] = l
		}
		for _, d := range s.Dividends {
			b.dividends[d.ID] = d
		}
	}
}

// DefaultCurrency is used when neither the account nor the book names one.
const DefaultCurrency = "INR"

// NewBook returns a book configured by opts.
func NewBook(opts ...Option) *Book {
	b := &Book{
		accounts:     make(map[string]Account),
		portfolios:   make(map[string]Portfolio),
		transactions: make(map[string]Transaction),
		trades:       make(map[string]Trade),
		links:        make(map[string]TradeLink),
		dividends:    make(map[string]Dividend),
		journal:      discardJournal{},
		log:          logrus.StandardLogger(),
		currency:     DefaultCurrency,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// txn stages one mutation.
type txn struct {
	accounts     *overlay[Account]
	portfolios   *overlay[Portfolio]
	transactions *overlay[Transaction]
	trades       *overlay[Trade]
	links        *overlay[TradeLink]
	dividends    *overlay[Dividend]
	seq          int64
	currency     string
	now          time.Time
}

func (t *txn) nextSeq() int64 {
	t.seq++
	return t.seq
}

// update runs fn on a staged copy of the book and commits the result.
func (b *Book) update(ctx context.Context, op string, fn func(t *txn) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := &txn{
		accounts:     newOverlay(b.accounts),
		portfolios:   newOverlay(b.portfolios),
		transactions: newOverlay(b.transactions),
		trades:       newOverlay(b.trades),
		links:        newOverlay(b.links),
		dividends:    newOverlay(b.dividends),
		seq:          b.seq,
		currency:     b.currency,
		now:          b.now().UTC(),
	}
	if err := fn(t); err != nil {
		return err
	}
	if err := t.checkBalances(); err != nil {
		return err
	}
	cs := t.changeset()
	if cs.Empty() {
		return nil
	}
	if err := b.journal.Commit(ctx, cs); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	t.flush()
	b.seq = t.seq
	b.log.WithFields(logrus.Fields{
		"op":           op,
		"accounts":     len(cs.Accounts),
		"transactions": len(cs.Transactions),
		"trades":       len(cs.Trades),
		"deleted":      len(cs.DeletedTransactions) + len(cs.DeletedTrades) + len(cs.DeletedAccounts) + len(cs.DeletedPortfolios),
	}).Debug("committed")
	return nil
}

// checkBalances rejects any staged negative cash balance.
func (t *txn) checkBalances() error {
	for _, a := range t.accounts.put {
		if a.Balance.IsNegative() {
			return fmt.Errorf("account %q would end at %v: %w", a.Name, a.Balance, ErrInsufficientFunds)
		}
	}
	return nil
}

func (t *txn) changeset() *Changeset {
	cs := &Changeset{Versions: make(map[string]int64)}
	for _, id := range t.accounts.order {
		a, ok := t.accounts.put[id]
		if !ok {
			continue
		}
		if old, existed := t.accounts.base[id]; existed {
			cs.Versions[id] = old.Version
			a.Version = old.Version + 1
		} else {
			a.Version = 1
		}
		t.accounts.put[id] = a
	}
	cs.Accounts, cs.DeletedAccounts = t.accounts.changes()
	cs.Portfolios, cs.DeletedPortfolios = t.portfolios.changes()
	cs.Transactions, cs.DeletedTransactions = t.transactions.changes()
	cs.Trades, cs.DeletedTrades = t.trades.changes()
	cs.Links, cs.DeletedLinks = t.links.changes()
	cs.Dividends, cs.DeletedDividends = t.dividends.changes()
	return cs
}

func (t *txn) flush() {
	t.accounts.flush()
	t.portfolios.flush()
	t.transactions.flush()
	t.trades.flush()
	t.links.flush()
	t.dividends.flush()
}

// --- readers ---

// Account returns the account with this ID.
func (b *Book) Account(id string) (Account, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.accounts[id]
	return a, ok
}

// Accounts returns all accounts in creation order.
func (b *Book) Accounts() []Account {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sortedValues(b.accounts)
}

// Portfolio returns the portfolio with this ID.
func (b *Book) Portfolio(id string) (Portfolio, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.portfolios[id]
	return p, ok
}

// Portfolios returns all portfolios in creation order.
func (b *Book) Portfolios() []Portfolio {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sortedValues(b.portfolios)
}

// Transaction returns the transaction with this ID.
func (b *Book) Transaction(id string) (Transaction, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	tx, ok := b.transactions[id]
	return tx, ok
}

// Transactions returns all transactions in insertion order.
func (b *Book) Transactions() []Transaction {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return bySeq(sortedValues(b.transactions), func(tx Transaction) int64 { return tx.Seq })
}

// Trade returns the trade with this ID.
func (b *Book) Trade(id string) (Trade, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	tr, ok := b.trades[id]
	return tr, ok
}

// Trades returns all trades in insertion order.
func (b *Book) Trades() []Trade {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return bySeq(sortedValues(b.trades), func(tr Trade) int64 { return tr.Seq })
}

// TradeLinks returns the links of a trade, cash leg first.
func (b *Book) TradeLinks(trade string) []TradeLink {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []TradeLink
	for _, leg := range []Leg{CashLeg, AssetLeg} {
		for _, l := range sortedValues(b.links) {
			if l.Trade == trade && l.Leg == leg {
				out = append(out, l)
			}
		}
	}
	return out
}

// Dividends returns all dividends sorted by record date.
func (b *Book) Dividends() []Dividend {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := sortedValues(b.dividends)
	sortStable(out, func(x, y Dividend) bool { return x.RecordDate.Before(y.RecordDate) })
	return out
}
