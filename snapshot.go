package lotbook

import (
	"iter"
	"maps"
	"slices"
	"time"

	"github.com/etnz/lotbook/date"
)

// Snapshot is a read-only view of a book as of a day, inclusive. It holds
// its own copy of the records, so it is safe to use while the book changes.
//
// All values are computed on demand by replaying the records up to the
// snapshot day. Missing data yields zero values, never errors.
type Snapshot struct {
	on           date.Date
	currency     string
	accounts     map[string]Account
	portfolios   map[string]Portfolio
	trades       []Trade // by insertion order
	transactions []Transaction
	dividends    []Dividend
}

// Snapshot returns a view of the book as of the end of day on.
func (b *Book) Snapshot(on date.Date) *Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := &Snapshot{
		on:         on,
		currency:   b.currency,
		accounts:   maps.Clone(b.accounts),
		portfolios: maps.Clone(b.portfolios),
	}
	for _, tr := range b.trades {
		if s.visible(tr.Timestamp) {
			s.trades = append(s.trades, tr)
		}
	}
	for _, tx := range b.transactions {
		if s.visible(tx.Timestamp) {
			s.transactions = append(s.transactions, tx)
		}
	}
	for _, d := range b.dividends {
		if !d.RecordDate.After(on) {
			s.dividends = append(s.dividends, d)
		}
	}
	bySeq(s.trades, func(tr Trade) int64 { return tr.Seq })
	bySeq(s.transactions, func(tx Transaction) int64 { return tx.Seq })
	sortStable(s.dividends, func(x, y Dividend) bool { return x.RecordDate.Before(y.RecordDate) })
	return s
}

// On returns the date of the snapshot.
func (s *Snapshot) On() date.Date { return s.on }

func (s *Snapshot) visible(ts time.Time) bool { return !date.Of(ts).After(s.on) }

// --- private calculation helpers ---

// portfolioTrades returns the trades of a portfolio ordered by stock, then
// timestamp, ties kept in insertion order.
func (s *Snapshot) portfolioTrades(portfolio string) []Trade {
	var out []Trade
	for _, tr := range s.trades {
		if tr.Portfolio == portfolio {
			out = append(out, tr)
		}
	}
	sortStable(out, func(x, y Trade) bool {
		if x.Stock != y.Stock {
			return x.Stock < y.Stock
		}
		return x.Timestamp.Before(y.Timestamp)
	})
	return out
}

// holding is the replayed state of one stock in one portfolio.
type holding struct {
	lots      lots
	realized  Money
	unmatched []UnmatchedSell
}

// replay runs the FIFO queue of every stock of the portfolio.
func (s *Snapshot) replay(portfolio string) map[string]*holding {
	out := make(map[string]*holding)
	cur := s.portfolioCurrency(portfolio)
	for _, tr := range s.portfolioTrades(portfolio) {
		h, ok := out[tr.Stock]
		if !ok {
			h = &holding{realized: M(0, cur)}
			out[tr.Stock] = h
		}
		switch tr.Operation {
		case Buy:
			h.lots = h.lots.buy(Lot{Quantity: tr.Quantity, Price: tr.Price, Timestamp: tr.Timestamp, Trade: tr.ID})
		case Seed:
			h.lots = h.lots.buy(Lot{Quantity: tr.Quantity, Price: M(0, tr.Price.Currency()), Timestamp: tr.Timestamp, Trade: tr.ID})
		case Sell:
			var gain Money
			var unmatched Quantity
			h.lots, gain, unmatched = h.lots.sell(tr.Quantity, tr.Price)
			h.realized = h.realized.Add(gain)
			if unmatched.IsPositive() {
				h.unmatched = append(h.unmatched, UnmatchedSell{Trade: tr.ID, Stock: tr.Stock, Quantity: unmatched, Timestamp: tr.Timestamp})
			}
		}
	}
	return out
}

// portfolioCurrency returns the currency of the account owning the portfolio.
func (s *Snapshot) portfolioCurrency(portfolio string) string {
	if a, ok := s.accounts[s.portfolios[portfolio].Account]; ok {
		return a.Currency
	}
	return s.currency
}

// stocks iterates over the stocks of a replay in order.
func stocks(h map[string]*holding) iter.Seq[string] {
	return slices.Values(slices.Sorted(maps.Keys(h)))
}

// --- FIFO lot engine ---

// Position is the open quantity of a stock in a portfolio.
type Position struct {
	Stock    string
	Quantity Quantity
	AvgCost  Money // cost per unit of the open lots
	Cost     Money // total cost of the open lots
}

// Positions returns the open positions of a portfolio sorted by stock.
// Stocks with no open quantity are omitted. Sub-portfolios are not included.
func (s *Snapshot) Positions(portfolio string) []Position {
	var out []Position
	replayed := s.replay(portfolio)
	for stock := range stocks(replayed) {
		l := replayed[stock].lots
		q := l.quantity()
		if q.IsZero() {
			continue
		}
		cost := l.cost()
		out = append(out, Position{Stock: stock, Quantity: q, AvgCost: cost.Div(q), Cost: cost})
	}
	return out
}

// Lots returns the open lots of a stock in a portfolio, oldest first.
func (s *Snapshot) Lots(portfolio, stock string) []Lot {
	h, ok := s.replay(portfolio)[stock]
	if !ok {
		return nil
	}
	return slices.Clone(h.lots)
}

// RealizedGain returns the gain realized by the sells of a portfolio.
func (s *Snapshot) RealizedGain(portfolio string) Money {
	total := M(0, s.portfolioCurrency(portfolio))
	for _, h := range s.replay(portfolio) {
		total = total.Add(h.realized)
	}
	return total
}

// Unmatched returns the sells of a portfolio that exceeded the open lots.
func (s *Snapshot) Unmatched(portfolio string) []UnmatchedSell {
	var out []UnmatchedSell
	replayed := s.replay(portfolio)
	for stock := range stocks(replayed) {
		out = append(out, replayed[stock].unmatched...)
	}
	return out
}

// Held returns the net quantity of stock held by portfolio at the end of
// day on: bought and seeded minus sold, ignoring cost basis.
func (s *Snapshot) Held(portfolio, stock string, on date.Date) Quantity {
	var q Quantity
	for _, tr := range s.trades {
		if tr.Portfolio != portfolio || tr.Stock != stock || date.Of(tr.Timestamp).After(on) {
			continue
		}
		switch tr.Operation {
		case Buy, Seed:
			q = q.Add(tr.Quantity)
		case Sell:
			q = q.Sub(tr.Quantity)
		}
	}
	return q
}
