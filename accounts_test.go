package lotbook

import (
	"errors"
	"testing"
)

func TestCreateAccount(t *testing.T) {
	f := newFixture(t, WithCurrency("EUR"))
	if got, want := f.bank.Currency, "EUR"; got != want {
		t.Errorf("default currency = %q, want %q", got, want)
	}
	if !f.bank.Balance.Equal(M(0, "EUR")) {
		t.Errorf("new balance = %v, want 0 EUR", f.bank.Balance)
	}
	usd := must(f.book.CreateAccount(f.ctx, Account{Name: "us", Entity: "bank", Currency: "usd"}))
	if usd.Entity != Bank || usd.Currency != "USD" {
		t.Errorf("CreateAccount() = %s %s, want BANK USD", usd.Entity, usd.Currency)
	}

	tests := []struct {
		name    string
		account Account
		want    error
	}{
		{"unknown entity", Account{Name: "x", Entity: "SAFE"}, ErrInvalidAccount},
		{"no name", Account{Entity: Bank}, ErrInvalidAccount},
		{"unknown parent", Account{Name: "x", Entity: VirtualSub, Parent: "nope"}, ErrAccountNotFound},
		{"custody to a bank", Account{Name: "x", Entity: Broker, Custody: f.bank.ID}, ErrInvalidAccount},
		{"custody already linked", Account{Name: "x", Entity: Broker, Custody: f.demat.ID}, ErrInvalidAccount},
		{"custody from a custody account", Account{Name: "x", Entity: Demat, Custody: f.demat.ID}, ErrInvalidAccount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.book.CreateAccount(f.ctx, tt.account); !errors.Is(err, tt.want) {
				t.Errorf("CreateAccount() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUpdateAccount(t *testing.T) {
	f := newFixture(t)
	a := must(f.book.CreateAccount(f.ctx, Account{Name: "a", Entity: VirtualSub}))
	b := must(f.book.CreateAccount(f.ctx, Account{Name: "b", Entity: VirtualSub, Parent: a.ID}))

	a.Parent = b.ID
	if _, err := f.book.UpdateAccount(f.ctx, a); !errors.Is(err, ErrInvalidAccount) {
		t.Errorf("UpdateAccount(cycle) error = %v, want %v", err, ErrInvalidAccount)
	}
	a.Parent = a.ID
	if _, err := f.book.UpdateAccount(f.ctx, a); !errors.Is(err, ErrInvalidAccount) {
		t.Errorf("UpdateAccount(self parent) error = %v, want %v", err, ErrInvalidAccount)
	}
	a.Parent, a.Entity = "", Bank
	if _, err := f.book.UpdateAccount(f.ctx, a); !errors.Is(err, ErrInvalidAccount) {
		t.Errorf("UpdateAccount(entity) error = %v, want %v", err, ErrInvalidAccount)
	}

	f.deposit(f.bank.ID, "10", on("2024-01-01"))
	bank := f.bank
	bank.Name, bank.Number, bank.Balance = "main bank", "0042", INR("1000000")
	updated, err := f.book.UpdateAccount(f.ctx, bank)
	if err != nil {
		t.Fatalf("UpdateAccount() error = %v", err)
	}
	if updated.Name != "main bank" || updated.Number != "0042" {
		t.Errorf("UpdateAccount() = %+v", updated)
	}
	if got, want := updated.Balance, INR("10"); !got.Equal(want) {
		t.Errorf("UpdateAccount() balance = %v, want %v", got, want)
	}
}

func TestCreatePortfolio(t *testing.T) {
	f := newFixture(t)
	if _, err := f.book.CreatePortfolio(f.ctx, Portfolio{Name: "cash", Account: f.bank.ID}); !errors.Is(err, ErrPortfolioAccountTypeInvalid) {
		t.Errorf("CreatePortfolio(bank) error = %v, want %v", err, ErrPortfolioAccountTypeInvalid)
	}
	if _, err := f.book.CreatePortfolio(f.ctx, Portfolio{Name: "x", Account: f.broker.ID, Parent: "nope"}); !errors.Is(err, ErrPortfolioNotFound) {
		t.Errorf("CreatePortfolio(unknown parent) error = %v, want %v", err, ErrPortfolioNotFound)
	}
	child := must(f.book.CreatePortfolio(f.ctx, Portfolio{Name: "child", Account: f.broker.ID, Parent: f.pf.ID}))
	if _, err := f.book.RenamePortfolio(f.ctx, f.pf.ID, "", child.ID); !errors.Is(err, ErrInvalidAccount) {
		t.Errorf("RenamePortfolio(cycle) error = %v, want %v", err, ErrInvalidAccount)
	}
	renamed, err := f.book.RenamePortfolio(f.ctx, child.ID, "kid", "")
	if err != nil || renamed.Name != "kid" || renamed.Parent != "" {
		t.Errorf("RenamePortfolio() = %+v, %v", renamed, err)
	}
}

func TestDeletePortfolio(t *testing.T) {
	f := newFixture(t)
	child := must(f.book.CreatePortfolio(f.ctx, Portfolio{Name: "child", Account: f.broker.ID, Parent: f.pf.ID}))
	f.deposit(f.broker.ID, "1000", on("2024-01-01"))
	f.trade(Buy, "INFY", "2", "100", on("2024-01-02"))
	must(f.book.AddTrade(f.ctx, Trade{Operation: Buy, Stock: "TCS", Quantity: Q(1), Price: INR("300"), Portfolio: child.ID, Timestamp: on("2024-01-02")}))

	if err := f.book.DeletePortfolio(f.ctx, f.pf.ID); err != nil {
		t.Fatalf("DeletePortfolio() error = %v", err)
	}
	if got := len(f.book.Portfolios()); got != 0 {
		t.Errorf("Portfolios() = %d, want 0", got)
	}
	if got := len(f.book.Trades()); got != 0 {
		t.Errorf("Trades() = %d, want 0", got)
	}
	if got, want := len(f.book.Transactions()), 1; got != want {
		t.Errorf("Transactions() = %d, want %d", got, want)
	}
	if got, want := f.balance(f.broker.ID), INR("1000"); !got.Equal(want) {
		t.Errorf("broker balance = %v, want %v", got, want)
	}
}

func TestDeleteAccount_Cascade(t *testing.T) {
	f := newFixture(t)
	sub := must(f.book.CreateAccount(f.ctx, Account{Name: "sub", Entity: VirtualSub, Parent: f.broker.ID}))
	f.deposit(f.bank.ID, "1000", on("2024-01-01"))
	must(f.book.Apply(f.ctx, Transaction{Kind: Transfer, Asset: Cash, Source: f.bank.ID, Destination: f.broker.ID, Amount: INR("600"), Timestamp: on("2024-01-01")}))
	must(f.book.Apply(f.ctx, Transaction{Kind: Transfer, Asset: Cash, Source: f.bank.ID, Destination: sub.ID, Amount: INR("100"), Timestamp: on("2024-01-01")}))
	f.trade(Buy, "INFY", "2", "100", on("2024-01-02"))

	if err := f.book.DeleteAccount(f.ctx, f.broker.ID); err != nil {
		t.Fatalf("DeleteAccount() error = %v", err)
	}
	for _, id := range []string{f.broker.ID, sub.ID} {
		if _, ok := f.book.Account(id); ok {
			t.Errorf("account %s still exists", id)
		}
	}
	if _, ok := f.book.Account(f.demat.ID); !ok {
		t.Errorf("demat account was deleted")
	}
	if got, want := f.balance(f.bank.ID), INR("1000"); !got.Equal(want) {
		t.Errorf("bank balance = %v, want %v", got, want)
	}
	if got := len(f.book.Portfolios()); got != 0 {
		t.Errorf("Portfolios() = %d, want 0", got)
	}
	if got := len(f.book.Trades()); got != 0 {
		t.Errorf("Trades() = %d, want 0", got)
	}
	if got, want := len(f.book.Transactions()), 1; got != want {
		t.Errorf("Transactions() = %d, want %d", got, want)
	}
}

func TestDeleteAccount_CustodyUnlinked(t *testing.T) {
	f := newFixture(t)
	f.deposit(f.broker.ID, "1000", on("2024-01-01"))
	f.trade(Buy, "INFY", "2", "100", on("2024-01-02"))

	if err := f.book.DeleteAccount(f.ctx, f.demat.ID); err != nil {
		t.Fatalf("DeleteAccount() error = %v", err)
	}
	broker, _ := f.book.Account(f.broker.ID)
	if broker.Custody != "" {
		t.Errorf("broker custody = %q, want none", broker.Custody)
	}
	if got, want := broker.Balance, INR("1000"); !got.Equal(want) {
		t.Errorf("broker balance = %v, want %v", got, want)
	}
	if got := len(f.book.Trades()); got != 0 {
		t.Errorf("Trades() = %d, want 0", got)
	}
	if _, ok := f.book.Portfolio(f.pf.ID); !ok {
		t.Errorf("broker portfolio was deleted")
	}
}

func TestDeleteAccount_RefusedWhenReversalOverdraws(t *testing.T) {
	f := newFixture(t)
	f.deposit(f.bank.ID, "100", on("2024-01-01"))
	must(f.book.Apply(f.ctx, Transaction{Kind: Transfer, Asset: Cash, Source: f.bank.ID, Destination: f.broker.ID, Amount: INR("100")}))
	must(f.book.Apply(f.ctx, Transaction{Kind: Debit, Asset: Cash, Source: f.broker.ID, Amount: INR("100")}))

	if err := f.book.DeleteAccount(f.ctx, f.bank.ID); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("DeleteAccount() error = %v, want %v", err, ErrInsufficientFunds)
	}
	if _, ok := f.book.Account(f.bank.ID); !ok {
		t.Errorf("bank deleted despite the error")
	}
}

func TestCreateAccount_StoredVersion(t *testing.T) {
	f := newFixture(t)
	stored, ok := f.book.Account(f.bank.ID)
	if !ok {
		t.Fatalf("Account(%s) not found", f.bank.ID)
	}
	if f.bank.Version != stored.Version || f.bank.Version != 1 {
		t.Errorf("CreateAccount() version = %d, stored %d, want 1", f.bank.Version, stored.Version)
	}
	if !f.bank.Updated.Equal(stored.Updated) {
		t.Errorf("CreateAccount() updated = %v, stored %v", f.bank.Updated, stored.Updated)
	}
}

func TestAccountParentCurrency(t *testing.T) {
	f := newFixture(t)
	if _, err := f.book.CreateAccount(f.ctx, Account{Name: "usd savings", Entity: VirtualSub, Currency: "USD", Parent: f.bank.ID}); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("CreateAccount(USD under INR) error = %v, want %v", err, ErrCurrencyMismatch)
	}
	if got := len(f.book.Accounts()); got != 3 {
		t.Errorf("Accounts() = %d, want 3", got)
	}

	usd := must(f.book.CreateAccount(f.ctx, Account{Name: "usd savings", Entity: VirtualSub, Currency: "USD"}))
	usd.Parent = f.bank.ID
	if _, err := f.book.UpdateAccount(f.ctx, usd); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("UpdateAccount(USD under INR) error = %v, want %v", err, ErrCurrencyMismatch)
	}
	if got, _ := f.book.Account(usd.ID); got.Parent != "" {
		t.Errorf("UpdateAccount() refused but parent = %q", got.Parent)
	}

	inr := must(f.book.CreateAccount(f.ctx, Account{Name: "inr savings", Entity: VirtualSub, Parent: f.bank.ID}))
	if inr.Parent != f.bank.ID {
		t.Errorf("CreateAccount() parent = %q, want %q", inr.Parent, f.bank.ID)
	}
}

func TestPortfolioParentCurrency(t *testing.T) {
	f := newFixture(t)
	usBroker := must(f.book.CreateAccount(f.ctx, Account{Name: "us broker", Entity: Broker, Currency: "USD"}))
	if _, err := f.book.CreatePortfolio(f.ctx, Portfolio{Name: "us", Account: usBroker.ID, Parent: f.pf.ID}); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("CreatePortfolio(USD under INR) error = %v, want %v", err, ErrCurrencyMismatch)
	}

	us := must(f.book.CreatePortfolio(f.ctx, Portfolio{Name: "us", Account: usBroker.ID}))
	if _, err := f.book.RenamePortfolio(f.ctx, us.ID, "", f.pf.ID); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("RenamePortfolio(USD under INR) error = %v, want %v", err, ErrCurrencyMismatch)
	}
	if got, _ := f.book.Portfolio(us.ID); got.Parent != "" {
		t.Errorf("RenamePortfolio() refused but parent = %q", got.Parent)
	}
	if _, err := f.book.RenamePortfolio(f.ctx, f.pf.ID, "", us.ID); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("RenamePortfolio(INR under USD) error = %v, want %v", err, ErrCurrencyMismatch)
	}
}
