package lotbook

import (
	"context"
	"fmt"
	"strings"
)

// CreateAccount stores a new account with a zero balance.
func (b *Book) CreateAccount(ctx context.Context, a Account) (Account, error) {
	err := b.update(ctx, "create account", func(t *txn) error {
		entity, err := ParseEntityType(string(a.Entity))
		if err != nil {
			return fmt.Errorf("%v: %w", err, ErrInvalidAccount)
		}
		a.Entity = entity
		a.Name = strings.TrimSpace(a.Name)
		if a.Name == "" {
			return fmt.Errorf("account without name: %w", ErrInvalidAccount)
		}
		if a.Currency == "" {
			a.Currency = t.currency
		}
		a.Currency = strings.ToUpper(a.Currency)
		a.ID = newID()
		a.Balance = M(0, a.Currency)
		a.Version = 0
		a.Updated = t.now
		if err := t.checkLinks(a); err != nil {
			return err
		}
		t.accounts.set(a.ID, a)
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	stored, _ := b.Account(a.ID)
	return stored, nil
}

// UpdateAccount changes the name, number, owner, parent or custody link of
// an account. Entity, currency and balance cannot change.
func (b *Book) UpdateAccount(ctx context.Context, a Account) (Account, error) {
	var stored Account
	err := b.update(ctx, "update account", func(t *txn) error {
		old, ok := t.accounts.get(a.ID)
		if !ok {
			return fmt.Errorf("account %q: %w", a.ID, ErrAccountNotFound)
		}
		if a.Entity != "" && a.Entity != old.Entity {
			return fmt.Errorf("cannot change entity of %q from %s to %s: %w", old.Name, old.Entity, a.Entity, ErrInvalidAccount)
		}
		if a.Currency != "" && !strings.EqualFold(a.Currency, old.Currency) {
			return fmt.Errorf("cannot change currency of %q: %w", old.Name, ErrInvalidAccount)
		}
		stored = old
		if name := strings.TrimSpace(a.Name); name != "" {
			stored.Name = name
		}
		stored.Number, stored.User, stored.Parent, stored.Custody = a.Number, a.User, a.Parent, a.Custody
		if err := t.checkLinks(stored); err != nil {
			return err
		}
		t.accounts.set(stored.ID, stored)
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	stored, _ = b.Account(stored.ID)
	return stored, nil
}

// checkLinks validates the parent and custody references of a.
func (t *txn) checkLinks(a Account) error {
	if a.Parent != "" {
		parent, ok := t.accounts.get(a.Parent)
		if !ok {
			return fmt.Errorf("parent %q: %w", a.Parent, ErrAccountNotFound)
		}
		if parent.Currency != a.Currency {
			return fmt.Errorf("%s account %q under %s account %q: %w", a.Currency, a.Name, parent.Currency, parent.Name, ErrCurrencyMismatch)
		}
		seen := map[string]bool{}
		for id, depth := a.Parent, 0; id != ""; depth++ {
			if id == a.ID || seen[id] || depth >= walkLimit {
				return fmt.Errorf("parent %q of %q makes a cycle: %w", a.Parent, a.Name, ErrInvalidAccount)
			}
			seen[id] = true
			p, _ := t.accounts.get(id)
			id = p.Parent
		}
	}
	if a.Custody != "" {
		c, ok := t.accounts.get(a.Custody)
		if !ok {
			return fmt.Errorf("custody %q: %w", a.Custody, ErrAccountNotFound)
		}
		if _, custody := c.Entity.Custodies(); !custody {
			return fmt.Errorf("%s account %q cannot hold custody: %w", c.Entity, c.Name, ErrInvalidAccount)
		}
		if !a.Entity.HoldsCash() {
			return fmt.Errorf("%s account %q cannot link a custody account: %w", a.Entity, a.Name, ErrInvalidAccount)
		}
		for id, other := range t.accounts.all() {
			if id != a.ID && other.Custody == a.Custody {
				return fmt.Errorf("custody %q already linked from %q: %w", c.Name, other.Name, ErrInvalidAccount)
			}
		}
	}
	return nil
}

// subtree returns id and its descendants through Parent, parents first.
func subtree[T any](o *overlay[T], root string, parent func(T) string) []string {
	out := []string{root}
	seen := map[string]bool{root: true}
	for i := 0; i < len(out) && i < walkLimit*walkLimit; i++ {
		for id, v := range o.all() {
			if parent(v) == out[i] && !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// DeleteAccount removes an account with its sub-accounts, their portfolios
// and trades, and every transaction touching them. The balance effect of
// those transactions on surviving accounts is reversed. Custody links
// pointing to a removed account are cleared.
func (b *Book) DeleteAccount(ctx context.Context, id string) error {
	return b.update(ctx, "delete account", func(t *txn) error {
		if _, ok := t.accounts.get(id); !ok {
			return fmt.Errorf("account %q: %w", id, ErrAccountNotFound)
		}
		gone := map[string]bool{}
		for _, a := range subtree(t.accounts, id, func(a Account) string { return a.Parent }) {
			gone[a] = true
		}
		for pid, p := range t.portfolios.all() {
			if gone[p.Account] {
				t.deletePortfolio(pid)
			}
		}
		for txid, tx := range t.transactions.all() {
			if !gone[tx.Source] && !gone[tx.Destination] {
				continue
			}
			if l, linked := t.links.get(txid); linked {
				t.deleteTrade(l.Trade)
				continue
			}
			t.deleteTx(tx)
		}
		for aid, a := range t.accounts.all() {
			if !gone[aid] && gone[a.Custody] {
				a.Custody = ""
				t.accounts.set(aid, a)
			}
		}
		for aid := range gone {
			t.accounts.remove(aid)
		}
		return nil
	})
}
