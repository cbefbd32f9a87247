package lotbook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// TradeIntent is a trade to import, naming its stock the way brokers'
// statements do.
type TradeIntent struct {
	TradeID   string    `json:"trade_id"`
	Portfolio string    `json:"portfolio"`
	Operation Operation `json:"operation"`
	Stock     StockRef  `json:"stock"`
	Quantity  Quantity  `json:"quantity"`
	Price     Money     `json:"price"`
	Tax       Money     `json:"tax"`
	Brokerage Money     `json:"brokerage"`
	Timestamp time.Time `json:"timestamp"`
	Notes     string    `json:"notes,omitempty"`
}

// ImportOptions tunes Import.
type ImportOptions struct {
	// Actions, when set, adds the reconciliation trades of the batch.
	Actions ActionSource
}

// ImportResult is the outcome of one imported item. Index is the position
// of the intent in the batch, or -1 for a reconciliation trade.
type ImportResult struct {
	Index   int
	TradeID string
	Trade   Trade
	Created bool
	Err     error
}

// ImportReport lists the outcome of every item of a batch.
type ImportReport struct {
	Results []ImportResult
	Created int
	Updated int
	Failed  int
}

// Err joins the errors of failed items, nil when all succeeded.
func (r *ImportReport) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

// Import upserts a batch of trades, keyed by portfolio and TradeID, so a
// batch can be submitted again after fixing its failed items.
//
// Items are applied one by one in timestamp order, a failing item does not
// stop the batch. The returned error is only set when ctx is done.
func (b *Book) Import(ctx context.Context, stocks *Stocks, intents []TradeIntent, opts ImportOptions) (*ImportReport, error) {
	report := &ImportReport{}
	type item struct {
		index int
		trade Trade
	}
	var items []item
	for i, in := range intents {
		st, err := stocks.Resolve(in.Stock)
		if err != nil {
			report.add(ImportResult{Index: i, TradeID: in.TradeID, Err: fmt.Errorf("trade %q: %w", in.TradeID, err)})
			continue
		}
		items = append(items, item{i, Trade{
			Operation:  in.Operation,
			Stock:      st.ID,
			Quantity:   in.Quantity,
			Price:      in.Price,
			Tax:        in.Tax,
			Brokerage:  in.Brokerage,
			Portfolio:  in.Portfolio,
			Timestamp:  in.Timestamp,
			Notes:      in.Notes,
			ExternalID: in.TradeID,
		}})
	}

	if opts.Actions != nil {
		batch := make([]Trade, len(items))
		for i, it := range items {
			batch[i] = it.trade
		}
		recon, err := Reconcile(ctx, batch, opts.Actions)
		if err != nil {
			return report, fmt.Errorf("reconciliation: %w", err)
		}
		for _, tr := range recon {
			items = append(items, item{-1, tr})
		}
	}
	sortStable(items, func(x, y item) bool { return x.trade.Timestamp.Before(y.trade.Timestamp) })

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		stored, created, err := b.UpsertTrade(ctx, it.trade)
		if err != nil {
			err = fmt.Errorf("trade %q: %w", it.trade.ExternalID, err)
		}
		report.add(ImportResult{Index: it.index, TradeID: it.trade.ExternalID, Trade: stored, Created: created, Err: err})
	}
	for _, res := range report.Results {
		if res.Err != nil {
			b.log.WithFields(logrus.Fields{"index": res.Index, "trade_id": res.TradeID}).WithError(res.Err).Warn("import failed")
		}
	}
	b.log.WithFields(logrus.Fields{"created": report.Created, "updated": report.Updated, "failed": report.Failed}).Info("import done")
	return report, nil
}

func (r *ImportReport) add(res ImportResult) {
	r.Results = append(r.Results, res)
	switch {
	case res.Err != nil:
		r.Failed++
	case res.Created:
		r.Created++
	default:
		r.Updated++
	}
}
