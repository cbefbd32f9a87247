package lotbook

import (
	"context"
	"fmt"
	"strings"
)

// CreatePortfolio attaches a new portfolio to a custody-capable account.
func (b *Book) CreatePortfolio(ctx context.Context, p Portfolio) (Portfolio, error) {
	err := b.update(ctx, "create portfolio", func(t *txn) error {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return fmt.Errorf("portfolio without name: %w", ErrInvalidAccount)
		}
		a, ok := t.accounts.get(p.Account)
		if !ok {
			return fmt.Errorf("account %q: %w", p.Account, ErrAccountNotFound)
		}
		if !a.Entity.CanOwnPortfolio() {
			return fmt.Errorf("%s account %q: %w", a.Entity, a.Name, ErrPortfolioAccountTypeInvalid)
		}
		if p.Parent != "" {
			if err := t.checkParentPortfolio(p, p.Parent); err != nil {
				return err
			}
		}
		p.ID = newID()
		t.portfolios.set(p.ID, p)
		return nil
	})
	if err != nil {
		return Portfolio{}, err
	}
	return p, nil
}

// RenamePortfolio changes the name and parent of a portfolio.
func (b *Book) RenamePortfolio(ctx context.Context, id, name, parent string) (Portfolio, error) {
	var stored Portfolio
	err := b.update(ctx, "rename portfolio", func(t *txn) error {
		p, ok := t.portfolios.get(id)
		if !ok {
			return fmt.Errorf("portfolio %q: %w", id, ErrPortfolioNotFound)
		}
		if name = strings.TrimSpace(name); name != "" {
			p.Name = name
		}
		if parent != "" {
			if err := t.checkParentPortfolio(p, parent); err != nil {
				return err
			}
			for _, sub := range subtree(t.portfolios, id, func(p Portfolio) string { return p.Parent }) {
				if sub == parent {
					return fmt.Errorf("parent %q of %q makes a cycle: %w", parent, p.Name, ErrInvalidAccount)
				}
			}
		}
		p.Parent = parent
		stored = p
		t.portfolios.set(id, p)
		return nil
	})
	return stored, err
}

// checkParentPortfolio checks that parent exists and is valued in the same
// currency as p.
func (t *txn) checkParentPortfolio(p Portfolio, parent string) error {
	pp, ok := t.portfolios.get(parent)
	if !ok {
		return fmt.Errorf("parent portfolio %q: %w", parent, ErrPortfolioNotFound)
	}
	own, _ := t.accounts.get(p.Account)
	up, _ := t.accounts.get(pp.Account)
	if own.Currency != up.Currency {
		return fmt.Errorf("%s portfolio %q under %s portfolio %q: %w", own.Currency, p.Name, up.Currency, pp.Name, ErrCurrencyMismatch)
	}
	return nil
}

// DeletePortfolio removes a portfolio, its sub-portfolios and all their
// trades, reversing the trades' transactions.
func (b *Book) DeletePortfolio(ctx context.Context, id string) error {
	return b.update(ctx, "delete portfolio", func(t *txn) error {
		if _, ok := t.portfolios.get(id); !ok {
			return fmt.Errorf("portfolio %q: %w", id, ErrPortfolioNotFound)
		}
		t.deletePortfolio(id)
		return nil
	})
}

func (t *txn) deletePortfolio(id string) {
	for _, pid := range subtree(t.portfolios, id, func(p Portfolio) string { return p.Parent }) {
		for tid, tr := range t.trades.all() {
			if tr.Portfolio == pid {
				t.deleteTrade(tid)
			}
		}
		t.portfolios.remove(pid)
	}
}

// AddDividend records a per-unit dividend.
func (b *Book) AddDividend(ctx context.Context, d Dividend) (Dividend, error) {
	err := b.update(ctx, "add dividend", func(t *txn) error {
		if d.Stock == "" {
			return fmt.Errorf("dividend without stock: %w", ErrUnresolvedStockReference)
		}
		if d.RecordDate.IsZero() {
			return fmt.Errorf("dividend on %q without record date: %w", d.Stock, ErrInvalidAmount)
		}
		if d.Amount.IsNegative() {
			return fmt.Errorf("dividend %v: %w", d.Amount, ErrInvalidAmount)
		}
		d.ID = newID()
		t.dividends.set(d.ID, d)
		return nil
	})
	if err != nil {
		return Dividend{}, err
	}
	return d, nil
}

// DeleteDividend removes a dividend record.
func (b *Book) DeleteDividend(ctx context.Context, id string) error {
	return b.update(ctx, "delete dividend", func(t *txn) error {
		if _, ok := t.dividends.get(id); !ok {
			return fmt.Errorf("dividend %q: %w", id, ErrDividendNotFound)
		}
		t.dividends.remove(id)
		return nil
	})
}
