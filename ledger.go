package lotbook

import (
	"context"
	"fmt"
)

// validate checks tx against the staged accounts. It never changes anything.
func (t *txn) validate(tx Transaction) error {
	if tx.Amount.IsNegative() {
		return fmt.Errorf("amount %v: %w", tx.Amount, ErrInvalidAmount)
	}
	switch tx.Asset {
	case Cash, Equity, CryptoAsset, CommodityAsset:
	default:
		return fmt.Errorf("unknown asset type %q: %w", tx.Asset, ErrAssetAccountMismatch)
	}
	switch tx.Kind {
	case Credit:
		if tx.Destination == "" || tx.Source != "" {
			return fmt.Errorf("credit needs a destination and no source: %w", ErrInvalidAccountPair)
		}
	case Debit:
		if tx.Source == "" || tx.Destination != "" {
			return fmt.Errorf("debit needs a source and no destination: %w", ErrInvalidAccountPair)
		}
	case Transfer:
		if tx.Source == "" || tx.Destination == "" || tx.Source == tx.Destination {
			return fmt.Errorf("transfer needs two distinct accounts: %w", ErrInvalidAccountPair)
		}
	default:
		return fmt.Errorf("unknown transaction kind %q: %w", tx.Kind, ErrInvalidAccountPair)
	}

	from, to := tx.sides()
	for _, id := range []string{from, to} {
		if id == "" {
			continue
		}
		a, ok := t.accounts.get(id)
		if !ok {
			return fmt.Errorf("account %q: %w", id, ErrAccountNotFound)
		}
		if !a.Entity.Accepts(tx.Asset) {
			return fmt.Errorf("%s into %s account %q: %w", tx.Asset, a.Entity, a.Name, ErrAssetAccountMismatch)
		}
		if !compatible(tx.Amount, a.Balance) {
			return fmt.Errorf("%s amount on %s account %q: %w", tx.Amount.Currency(), a.Currency, a.Name, ErrCurrencyMismatch)
		}
	}
	if tx.Asset == Cash && from != "" {
		a, _ := t.accounts.get(from)
		if a.Balance.LessThan(tx.Amount) {
			return fmt.Errorf("%v from %q holding %v: %w", tx.Amount, a.Name, a.Balance, ErrInsufficientFunds)
		}
	}
	return nil
}

// normalize labels a currency-less amount with the currency of the accounts it touches.
func (t *txn) normalize(tx Transaction) Transaction {
	if tx.Amount.Currency() != "" {
		return tx
	}
	from, to := tx.sides()
	for _, id := range []string{from, to} {
		if a, ok := t.accounts.get(id); ok {
			tx.Amount = tx.Amount.In(a.Currency)
			return tx
		}
	}
	return tx
}

// move adds sign*tx to the balances it touches. Non-cash transactions move nothing.
func (t *txn) move(tx Transaction, undo bool) {
	if tx.Asset != Cash {
		return
	}
	from, to := tx.sides()
	for _, id := range []string{from, to} {
		if id == "" {
			continue
		}
		a, ok := t.accounts.get(id)
		if !ok {
			continue // account being deleted
		}
		d := tx.delta(id)
		if undo {
			d = d.Neg()
		}
		a.Balance = a.Balance.Add(d)
		a.Updated = t.now
		t.accounts.set(id, a)
	}
}

// insertTx validates and applies a new transaction.
func (t *txn) insertTx(tx Transaction) (Transaction, error) {
	tx = t.normalize(tx)
	if err := t.validate(tx); err != nil {
		return Transaction{}, err
	}
	if tx.ID == "" {
		tx.ID = newID()
	}
	tx.Seq = t.nextSeq()
	t.move(tx, false)
	t.transactions.set(tx.ID, tx)
	return tx, nil
}

// replaceTx undoes old and applies tx in its place, keeping identity.
func (t *txn) replaceTx(old, tx Transaction) (Transaction, error) {
	tx.ID, tx.Seq = old.ID, old.Seq
	t.move(old, true)
	tx = t.normalize(tx)
	if err := t.validate(tx); err != nil {
		return Transaction{}, err
	}
	t.move(tx, false)
	t.transactions.set(tx.ID, tx)
	return tx, nil
}

// deleteTx undoes and removes a transaction along with its trade link.
func (t *txn) deleteTx(tx Transaction) {
	t.move(tx, true)
	t.transactions.remove(tx.ID)
	t.links.remove(tx.ID)
}

// Apply validates tx and applies its balance effect. The stored transaction,
// with its new ID, is returned.
func (b *Book) Apply(ctx context.Context, tx Transaction) (Transaction, error) {
	tx.ID = ""
	var stored Transaction
	err := b.update(ctx, "apply", func(t *txn) (err error) {
		stored, err = t.insertTx(tx)
		return err
	})
	return stored, err
}

// UpdateTransaction replaces the transaction with tx.ID, undoing the old
// balance effect and applying the new one in a single step. Transactions
// generated by a trade change through UpdateTrade.
func (b *Book) UpdateTransaction(ctx context.Context, tx Transaction) (Transaction, error) {
	var stored Transaction
	err := b.update(ctx, "update transaction", func(t *txn) (err error) {
		old, ok := t.transactions.get(tx.ID)
		if !ok {
			return fmt.Errorf("transaction %q: %w", tx.ID, ErrTransactionNotFound)
		}
		if l, linked := t.links.get(tx.ID); linked {
			return fmt.Errorf("transaction %q belongs to trade %q: %w", tx.ID, l.Trade, ErrLinkedTransaction)
		}
		stored, err = t.replaceTx(old, tx)
		return err
	})
	return stored, err
}

// DeleteTransaction removes a transaction and reverses its balance effect.
// It fails with ErrInsufficientFunds when the reversal would leave a
// negative balance.
func (b *Book) DeleteTransaction(ctx context.Context, id string) error {
	return b.update(ctx, "delete transaction", func(t *txn) error {
		tx, ok := t.transactions.get(id)
		if !ok {
			return fmt.Errorf("transaction %q: %w", id, ErrTransactionNotFound)
		}
		if l, linked := t.links.get(id); linked {
			return fmt.Errorf("transaction %q belongs to trade %q: %w", id, l.Trade, ErrLinkedTransaction)
		}
		t.deleteTx(tx)
		return nil
	})
}
