package lotbook

import (
	"context"
	"fmt"
)

// legs returns the transactions that represent tr, by role. It also returns
// tr with its amounts labelled in the account currency.
func (t *txn) legs(tr Trade) (Trade, map[Leg]Transaction, error) {
	if err := tr.validate(); err != nil {
		return tr, nil, err
	}
	p, ok := t.portfolios.get(tr.Portfolio)
	if !ok {
		return tr, nil, fmt.Errorf("portfolio %q: %w", tr.Portfolio, ErrPortfolioNotFound)
	}
	acct, ok := t.accounts.get(p.Account)
	if !ok {
		return tr, nil, fmt.Errorf("account %q: %w", p.Account, ErrAccountNotFound)
	}
	for _, m := range []*Money{&tr.Price, &tr.Tax, &tr.Brokerage} {
		if m.Currency() != "" && m.Currency() != acct.Currency {
			return tr, nil, fmt.Errorf("%s trade on %s account %q: %w", m.Currency(), acct.Currency, acct.Name, ErrCurrencyMismatch)
		}
		*m = m.In(acct.Currency)
	}

	// A portfolio held directly by a custody account has no cash side.
	custody, cashAccount := acct, ""
	if _, isCustody := acct.Entity.Custodies(); !isCustody {
		if acct.Custody == "" {
			return tr, nil, fmt.Errorf("%s account %q: %w", acct.Entity, acct.Name, ErrMissingCustodyAccount)
		}
		if custody, ok = t.accounts.get(acct.Custody); !ok {
			return tr, nil, fmt.Errorf("custody %q: %w", acct.Custody, ErrAccountNotFound)
		}
		cashAccount = acct.ID
	}
	asset, _ := custody.Entity.Custodies()

	value := tr.Value()
	notes := fmt.Sprintf("%s %v %s @ %v", tr.Operation, tr.Quantity, tr.Stock, tr.Price)
	if tr.Notes != "" {
		notes += ": " + tr.Notes
	}
	leg := func(kind Kind, a AssetType, source, destination string, amount Money) Transaction {
		return Transaction{Kind: kind, Asset: a, Source: source, Destination: destination, Amount: amount, Timestamp: tr.Timestamp, Notes: notes}
	}

	out := make(map[Leg]Transaction, 2)
	switch tr.Operation {
	case Buy:
		if cashAccount != "" {
			out[CashLeg] = leg(Debit, Cash, cashAccount, "", value.Add(tr.Tax).Add(tr.Brokerage))
		}
		out[AssetLeg] = leg(Credit, asset, "", custody.ID, value)
	case Sell:
		if cashAccount != "" {
			net := value.Sub(tr.Tax).Sub(tr.Brokerage)
			if net.IsNegative() {
				return tr, nil, fmt.Errorf("sell proceeds %v below charges: %w", net, ErrInvalidAmount)
			}
			out[CashLeg] = leg(Credit, Cash, "", cashAccount, net)
		}
		out[AssetLeg] = leg(Debit, asset, custody.ID, "", value)
	case Seed:
		out[AssetLeg] = leg(Credit, asset, "", custody.ID, value)
	}
	return tr, out, nil
}

// linksOf returns the staged links of a trade by role.
func (t *txn) linksOf(trade string) map[Leg]TradeLink {
	out := make(map[Leg]TradeLink, 2)
	for _, l := range t.links.all() {
		if l.Trade == trade {
			out[l.Leg] = l
		}
	}
	return out
}

func (t *txn) insertTrade(tr Trade) (Trade, error) {
	tr, legs, err := t.legs(tr)
	if err != nil {
		return Trade{}, err
	}
	tr.ID = newID()
	tr.Seq = t.nextSeq()
	for _, role := range []Leg{CashLeg, AssetLeg} {
		l, ok := legs[role]
		if !ok {
			continue
		}
		stored, err := t.insertTx(l)
		if err != nil {
			return Trade{}, fmt.Errorf("%s leg: %w", role, err)
		}
		t.links.set(stored.ID, TradeLink{Trade: tr.ID, Transaction: stored.ID, Leg: role})
	}
	t.trades.set(tr.ID, tr)
	return tr, nil
}

// replaceTrade adjusts the existing legs of old in place to represent tr.
// Legs are only created or removed when the operation changes which legs
// the trade needs.
func (t *txn) replaceTrade(old, tr Trade) (Trade, error) {
	tr.ID, tr.Seq = old.ID, old.Seq
	tr, legs, err := t.legs(tr)
	if err != nil {
		return Trade{}, err
	}
	existing := t.linksOf(tr.ID)

	// Undo every old leg before applying any new one, so that a leg freeing
	// funds is taken into account by the others.
	for _, l := range existing {
		if tx, ok := t.transactions.get(l.Transaction); ok {
			t.move(tx, true)
		}
	}
	for _, role := range []Leg{CashLeg, AssetLeg} {
		l, had := existing[role]
		next, want := legs[role]
		switch {
		case had && want:
			prev, _ := t.transactions.get(l.Transaction)
			next.ID, next.Seq = prev.ID, prev.Seq
			next = t.normalize(next)
			if err := t.validate(next); err != nil {
				return Trade{}, fmt.Errorf("%s leg: %w", role, err)
			}
			t.move(next, false)
			t.transactions.set(next.ID, next)
		case had:
			t.transactions.remove(l.Transaction)
			t.links.remove(l.Transaction)
		case want:
			stored, err := t.insertTx(next)
			if err != nil {
				return Trade{}, fmt.Errorf("%s leg: %w", role, err)
			}
			t.links.set(stored.ID, TradeLink{Trade: tr.ID, Transaction: stored.ID, Leg: role})
		}
	}
	t.trades.set(tr.ID, tr)
	return tr, nil
}

// deleteTrade removes a trade after its transactions.
func (t *txn) deleteTrade(id string) {
	for _, l := range t.linksOf(id) {
		if tx, ok := t.transactions.get(l.Transaction); ok {
			t.deleteTx(tx)
		}
		t.links.remove(l.Transaction)
	}
	t.trades.remove(id)
}

// AddTrade stores a trade with the transactions representing it:
//
//   - BUY debits the account cash for value, tax and brokerage, and credits
//     the custody account with the value.
//   - SELL credits the account cash with the value net of tax and
//     brokerage, and debits the custody account with the value.
//   - SEED only credits the custody account.
func (b *Book) AddTrade(ctx context.Context, tr Trade) (Trade, error) {
	var stored Trade
	err := b.update(ctx, "add trade", func(t *txn) (err error) {
		stored, err = t.insertTrade(tr)
		return err
	})
	return stored, err
}

// UpdateTrade replaces the trade with tr.ID and adjusts its transactions in place.
func (b *Book) UpdateTrade(ctx context.Context, tr Trade) (Trade, error) {
	var stored Trade
	err := b.update(ctx, "update trade", func(t *txn) (err error) {
		old, ok := t.trades.get(tr.ID)
		if !ok {
			return fmt.Errorf("trade %q: %w", tr.ID, ErrTradeNotFound)
		}
		stored, err = t.replaceTrade(old, tr)
		return err
	})
	return stored, err
}

// UpsertTrade updates the trade of tr.Portfolio carrying tr.ExternalID, or
// adds tr when there is none. created reports which happened.
func (b *Book) UpsertTrade(ctx context.Context, tr Trade) (stored Trade, created bool, err error) {
	if tr.ExternalID == "" {
		stored, err = b.AddTrade(ctx, tr)
		return stored, err == nil, err
	}
	err = b.update(ctx, "upsert trade", func(t *txn) (err error) {
		for _, old := range t.trades.all() {
			if old.Portfolio == tr.Portfolio && old.ExternalID == tr.ExternalID {
				stored, err = t.replaceTrade(old, tr)
				return err
			}
		}
		created = true
		stored, err = t.insertTrade(tr)
		return err
	})
	return stored, created && err == nil, err
}

// DeleteTrade removes a trade and reverses its transactions.
func (b *Book) DeleteTrade(ctx context.Context, id string) error {
	return b.update(ctx, "delete trade", func(t *txn) error {
		if _, ok := t.trades.get(id); !ok {
			return fmt.Errorf("trade %q: %w", id, ErrTradeNotFound)
		}
		t.deleteTrade(id)
		return nil
	})
}
