package lotbook

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/etnz/lotbook/date"
	"golang.org/x/sync/errgroup"
)

// ActionKind is the kind of a corporate action.
type ActionKind string

const (
	Split ActionKind = "split"
	Bonus ActionKind = "bonus"
)

// CorporateAction is a split or bonus issue of a stock, effective on ExDate.
//
// A split changes the face value from OldFaceValue to NewFaceValue, so each
// share becomes OldFaceValue/NewFaceValue shares. A bonus grants Numerator
// new shares for every Denominator held.
type CorporateAction struct {
	Stock        string
	ExDate       date.Date
	Kind         ActionKind
	OldFaceValue Quantity
	NewFaceValue Quantity
	Numerator    Quantity
	Denominator  Quantity
}

// factor returns the number of extra shares per share held.
func (a CorporateAction) factor() (Quantity, error) {
	switch a.Kind {
	case Split:
		if !a.OldFaceValue.IsPositive() || !a.NewFaceValue.IsPositive() {
			return Quantity{}, fmt.Errorf("split of %s on %v: invalid face values %v/%v", a.Stock, a.ExDate, a.OldFaceValue, a.NewFaceValue)
		}
		return a.OldFaceValue.Div(a.NewFaceValue).Sub(Q(1)), nil
	case Bonus:
		if a.Numerator.IsNegative() || !a.Denominator.IsPositive() {
			return Quantity{}, fmt.Errorf("bonus of %s on %v: invalid ratio %v:%v", a.Stock, a.ExDate, a.Numerator, a.Denominator)
		}
		return a.Numerator.Div(a.Denominator), nil
	default:
		return Quantity{}, fmt.Errorf("unknown corporate action %q", a.Kind)
	}
}

// ActionSource provides the corporate actions of a stock, sorted by ex-date.
type ActionSource interface {
	Actions(stock string) []CorporateAction
}

// ReconcilePrefix starts the ExternalID of every reconciliation trade.
const ReconcilePrefix = "RECON-"

// ReconcileID returns the ExternalID of the reconciliation trade of a stock on an ex-date.
func ReconcileID(stock string, exDate date.Date) string {
	return ReconcilePrefix + stock + "-" + exDate.String()
}

// IsReconciliation reports whether tr was produced by Reconcile.
func IsReconciliation(tr Trade) bool { return strings.HasPrefix(tr.ExternalID, ReconcilePrefix) }

// Reconcile returns the zero-price BUY trades that bring the quantities of a
// batch of historical trades in line with later splits and bonus issues.
//
// For every (portfolio, stock), ex-dates are processed in ascending order.
// Each trade dated strictly before the ex-date contributes
// floor(q*(old/new-1)) for a split and floor(q'*num/den) for a bonus, q'
// being its quantity after the splits of that ex-date. Contributions add up
// on the side of the trade's operation, and a single trade dated on the
// ex-date is emitted for buys minus sells when positive. Emitted trades take
// part in the following ex-dates. Reconciliation trades in the input are
// ignored, so the output can be fed back safely.
//
// Stocks are independent and processed concurrently.
func Reconcile(ctx context.Context, trades []Trade, actions ActionSource) ([]Trade, error) {
	type key struct{ portfolio, stock string }
	groups := map[key][]Trade{}
	var keys []key
	for _, tr := range trades {
		if IsReconciliation(tr) {
			continue
		}
		k := key{tr.Portfolio, tr.Stock}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], tr)
	}

	results := make([][]Trade, len(keys))
	g, ctx := errgroup.WithContext(ctx)
	var mu sync.Mutex // guards actions, sources need not be concurrency safe
	for i, k := range keys {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			mu.Lock()
			events := actions.Actions(k.stock)
			mu.Unlock()
			out, err := reconcileStock(groups[k], events)
			if err != nil {
				return fmt.Errorf("portfolio %q: %w", k.portfolio, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []Trade
	for _, r := range results {
		out = append(out, r...)
	}
	sortStable(out, func(x, y Trade) bool {
		if x.Portfolio != y.Portfolio {
			return x.Portfolio < y.Portfolio
		}
		if x.Stock != y.Stock {
			return x.Stock < y.Stock
		}
		return x.Timestamp.Before(y.Timestamp)
	})
	return out, nil
}

// reconcileStock reconciles the trades of one stock in one portfolio.
func reconcileStock(trades []Trade, events []CorporateAction) ([]Trade, error) {
	if len(trades) == 0 {
		return nil, nil
	}
	sortStable(trades, func(x, y Trade) bool { return x.Timestamp.Before(y.Timestamp) })
	events = append([]CorporateAction(nil), events...)
	sortStable(events, func(x, y CorporateAction) bool { return x.ExDate.Before(y.ExDate) })

	first := trades[0]
	var out []Trade
	for i := 0; i < len(events); {
		exDate := events[i].ExDate
		var splits, bonuses []Quantity
		for ; i < len(events) && events[i].ExDate == exDate; i++ {
			f, err := events[i].factor()
			if err != nil {
				return nil, err
			}
			if events[i].Kind == Split {
				splits = append(splits, f)
			} else {
				bonuses = append(bonuses, f)
			}
		}

		var bought, sold Quantity
		for _, tr := range append(trades[:len(trades):len(trades)], out...) {
			if !date.Of(tr.Timestamp).Before(exDate) {
				continue
			}
			q, adj := tr.Quantity, Q(0)
			for _, f := range splits {
				a := q.Mul(f).Floor()
				adj, q = adj.Add(a), q.Add(a)
			}
			for _, f := range bonuses {
				adj = adj.Add(q.Mul(f).Floor())
			}
			if tr.Operation == Sell {
				sold = sold.Add(adj)
			} else {
				bought = bought.Add(adj)
			}
		}
		net := bought.Sub(sold)
		if !net.IsPositive() {
			continue
		}
		out = append(out, Trade{
			Operation:  Buy,
			Stock:      first.Stock,
			Portfolio:  first.Portfolio,
			Quantity:   net,
			Price:      M(0, first.Price.Currency()),
			Tax:        M(0, first.Price.Currency()),
			Brokerage:  M(0, first.Price.Currency()),
			Timestamp:  exDate.Time(),
			ExternalID: ReconcileID(first.Stock, exDate),
			Notes:      fmt.Sprintf("reconciliation of corporate actions on %v", exDate),
		})
	}
	return out, nil
}
