package lotbook

import (
	"testing"

	"github.com/etnz/lotbook/date"
)

func TestDividends(t *testing.T) {
	tests := []struct {
		name   string
		bought string
		asOf   date.Date
		want   Money
	}{
		{"held on both record dates", "2023-01-01", date.New(2023, 12, 31), INR("70")},
		{"bought after the first record date", "2023-01-02", date.New(2023, 12, 31), INR("20")},
		{"second record date not reached", "2023-01-01", date.New(2023, 1, 15), INR("50")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.deposit(f.broker.ID, "10000", on("2022-12-31"))
			f.trade(Buy, "INFY", "10", "100", on(tt.bought))
			must(f.book.AddDividend(f.ctx, Dividend{RecordDate: date.New(2023, 1, 1), Stock: "INFY", Amount: INR("5")}))
			must(f.book.AddDividend(f.ctx, Dividend{RecordDate: date.New(2023, 2, 1), Stock: "INFY", Amount: INR("2")}))
			must(f.book.AddDividend(f.ctx, Dividend{RecordDate: date.New(2023, 2, 1), Stock: "TCS", Amount: INR("100")}))

			s := f.book.Snapshot(tt.asOf)
			if got := s.Dividends(f.pf.ID, "INFY"); !got.Equal(tt.want) {
				t.Errorf("Dividends() = %v, want %v", got, tt.want)
			}
			if got := s.DividendIncome(f.pf.ID); !got.Equal(tt.want) {
				t.Errorf("DividendIncome() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDividends_PlainNetQuantity(t *testing.T) {
	f := newFixture(t)
	f.deposit(f.broker.ID, "10000", on("2023-01-01"))
	f.trade(Buy, "INFY", "10", "100", on("2023-01-01"))
	f.trade(Sell, "INFY", "4", "120", on("2023-01-10"))
	f.trade(Seed, "INFY", "1", "0", on("2023-01-20"))
	must(f.book.AddDividend(f.ctx, Dividend{RecordDate: date.New(2023, 1, 10), Stock: "INFY", Amount: INR("1")}))
	must(f.book.AddDividend(f.ctx, Dividend{RecordDate: date.New(2023, 1, 31), Stock: "INFY", Amount: INR("0.5")}))

	// 6 held on the 10th, 7 on the 31st.
	if got, want := f.book.Snapshot(date.New(2023, 12, 31)).Dividends(f.pf.ID, "INFY"), INR("9.5"); !got.Equal(want) {
		t.Errorf("Dividends() = %v, want %v", got, want)
	}
}

func TestNetCash_SubAccounts(t *testing.T) {
	f := newFixture(t)
	sub := must(f.book.CreateAccount(f.ctx, Account{Name: "savings", Entity: VirtualSub, User: "alice", Parent: f.bank.ID}))
	f.deposit(f.bank.ID, "1000", on("2024-01-01"))
	if _, err := f.book.Apply(f.ctx, Transaction{Kind: Transfer, Asset: Cash, Source: f.bank.ID, Destination: sub.ID, Amount: INR("300"), Timestamp: on("2024-01-02")}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.book.Apply(f.ctx, Transaction{Kind: Debit, Asset: Cash, Source: sub.ID, Amount: INR("100"), Timestamp: on("2024-01-03")}); err != nil {
		t.Fatal(err)
	}

	s := f.book.Snapshot(date.New(2024, 12, 31))
	if got, want := s.NetCash(f.bank.ID), INR("900"); !got.Equal(want) {
		t.Errorf("NetCash(bank) = %v, want %v", got, want)
	}
	if got, want := s.NetCash(sub.ID), INR("200"); !got.Equal(want) {
		t.Errorf("NetCash(sub) = %v, want %v", got, want)
	}
	if got, want := f.book.Snapshot(date.New(2024, 1, 2)).NetCash(sub.ID), INR("300"); !got.Equal(want) {
		t.Errorf("NetCash(sub) on 2024-01-02 = %v, want %v", got, want)
	}
}

func TestAccountNetValue(t *testing.T) {
	f := newFixture(t)
	child := must(f.book.CreatePortfolio(f.ctx, Portfolio{Name: "child", Account: f.broker.ID, Parent: f.pf.ID}))
	f.deposit(f.broker.ID, "1000", on("2024-01-01"))
	must(f.book.AddTrade(f.ctx, Trade{Operation: Buy, Stock: "INFY", Quantity: Q(5), Price: INR("100"), Tax: INR("1"), Portfolio: f.pf.ID, Timestamp: on("2024-01-02")}))
	must(f.book.AddTrade(f.ctx, Trade{Operation: Buy, Stock: "TCS", Quantity: Q(2), Price: INR("50"), Brokerage: INR("0.5"), Portfolio: child.ID, Timestamp: on("2024-01-03")}))
	must(f.book.AddTrade(f.ctx, Trade{Operation: Sell, Stock: "TCS", Quantity: Q(1), Price: INR("60"), Portfolio: child.ID, Timestamp: on("2024-01-04")}))

	s := f.book.Snapshot(date.New(2024, 12, 31))
	if got, want := s.InvestedValue(child.ID), INR("50"); !got.Equal(want) {
		t.Errorf("InvestedValue(child) = %v, want %v", got, want)
	}
	if got, want := s.InvestedValue(f.pf.ID), INR("550"); !got.Equal(want) {
		t.Errorf("InvestedValue(main) = %v, want %v", got, want)
	}
	// 1000 - 501 - 100.5 + 60 in cash.
	if got, want := s.NetCash(f.broker.ID), INR("458.5"); !got.Equal(want) {
		t.Errorf("NetCash() = %v, want %v", got, want)
	}
	if got, want := s.AccountNetValue(f.broker.ID), INR("1008.5"); !got.Equal(want) {
		t.Errorf("AccountNetValue() = %v, want %v", got, want)
	}

	sum := s.AccountSummary(f.broker.ID)
	checks := []struct {
		name      string
		got, want Money
	}{
		{"Invested", sum.Invested, INR("550")},
		{"Realized", sum.Realized, INR("10")},
		{"Taxes", sum.Taxes, INR("1")},
		{"Brokerage", sum.Brokerage, INR("0.5")},
		{"Bought", sum.Bought, INR("600")},
		{"Sold", sum.Sold, INR("60")},
		{"NetGains", sum.NetGains, INR("8.5")},
	}
	for _, c := range checks {
		if !c.got.Equal(c.want) {
			t.Errorf("AccountSummary().%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if got, want := sum.PortfolioCount, 2; got != want {
		t.Errorf("AccountSummary().PortfolioCount = %d, want %d", got, want)
	}
}

func TestOverviews(t *testing.T) {
	f := newFixture(t)
	eur := must(f.book.CreateAccount(f.ctx, Account{Name: "eu bank", Entity: Bank, User: "alice", Currency: "EUR"}))
	must(f.book.CreateAccount(f.ctx, Account{Name: "other", Entity: Bank, User: "bob"}))
	must(f.book.Apply(f.ctx, Transaction{Kind: Credit, Asset: Cash, Destination: eur.ID, Amount: M(50, "EUR"), Timestamp: on("2024-01-01")}))
	f.deposit(f.bank.ID, "300", on("2024-01-01"))
	f.deposit(f.broker.ID, "1000", on("2024-01-01"))
	f.trade(Buy, "INFY", "4", "100", on("2024-01-02"))
	f.trade(Sell, "INFY", "1", "150", on("2024-01-03"))

	got := f.book.Snapshot(date.New(2024, 12, 31)).Overviews("alice")
	if len(got) != 2 || got[0].Currency != "EUR" || got[1].Currency != "INR" {
		t.Fatalf("Overviews() = %+v, want EUR then INR", got)
	}
	if want := M(50, "EUR"); !got[0].NetWorth.Equal(want) || !got[0].LiquidCash.Equal(want) {
		t.Errorf("EUR overview = %v / %v, want %v", got[0].NetWorth, got[0].LiquidCash, want)
	}
	inr := got[1]
	checks := []struct {
		name      string
		got, want Money
	}{
		{"LiquidCash", inr.LiquidCash, INR("1050")},
		{"Invested", inr.Invested, INR("300")},
		{"NetWorth", inr.NetWorth, INR("1350")},
		{"Realized", inr.Realized, INR("50")},
		{"TotalBuy", inr.TotalBuy, INR("400")},
		{"TotalSell", inr.TotalSell, INR("150")},
		{"NetGains", inr.NetGains, INR("50")},
	}
	for _, c := range checks {
		if !c.got.Equal(c.want) {
			t.Errorf("INR overview %s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if got, want := len(inr.Accounts), 3; got != want {
		t.Errorf("INR overview accounts = %d, want %d", got, want)
	}
}

func TestValuation_MixedCurrencyStateIsNotRolledUp(t *testing.T) {
	ts := on("2024-01-02")
	state := &State{
		Accounts: []Account{
			{ID: "bank", Name: "bank", Entity: Bank, User: "alice", Currency: "INR", Balance: INR("0")},
			{ID: "sub", Name: "usd sub", Entity: VirtualSub, User: "alice", Currency: "USD", Parent: "bank", Balance: M(10, "USD")},
			{ID: "brk", Name: "broker", Entity: Broker, User: "alice", Currency: "INR", Balance: INR("0")},
			{ID: "ubrk", Name: "us broker", Entity: Broker, User: "alice", Currency: "USD", Balance: M(0, "USD")},
		},
		Portfolios: []Portfolio{
			{ID: "p1", Name: "main", Account: "brk"},
			{ID: "p2", Name: "us", Account: "ubrk", Parent: "p1"},
		},
		Transactions: []Transaction{
			{ID: "t1", Kind: Credit, Asset: Cash, Destination: "sub", Amount: M(10, "USD"), Timestamp: ts, Seq: 1},
		},
		Trades: []Trade{
			{ID: "tr1", Operation: Buy, Stock: "AAPL", Quantity: Q(2), Price: M(25, "USD"), Portfolio: "p2", Timestamp: ts, Seq: 2},
		},
	}
	s := NewBook(WithLogger(quiet()), WithState(state)).Snapshot(date.New(2024, 12, 31))

	if got, want := s.NetCash("bank"), INR("0"); !got.Equal(want) {
		t.Errorf("NetCash(bank) = %v, want %v", got, want)
	}
	if got, want := s.NetCash("sub"), M(10, "USD"); !got.Equal(want) {
		t.Errorf("NetCash(sub) = %v, want %v", got, want)
	}
	if got, want := s.InvestedValue("p1"), INR("0"); !got.Equal(want) {
		t.Errorf("InvestedValue(p1) = %v, want %v", got, want)
	}
	if got, want := s.InvestedValue("p2"), M(50, "USD"); !got.Equal(want) {
		t.Errorf("InvestedValue(p2) = %v, want %v", got, want)
	}
	got := s.Overviews("alice")
	if len(got) != 2 || got[0].Currency != "INR" || got[1].Currency != "USD" {
		t.Fatalf("Overviews() = %+v, want INR then USD", got)
	}
	if want := M(60, "USD"); !got[1].NetWorth.Equal(want) {
		t.Errorf("USD overview NetWorth = %v, want %v", got[1].NetWorth, want)
	}
}

func TestAccountSummary_SubAccountPortfolios(t *testing.T) {
	f := newFixture(t)
	demat2 := must(f.book.CreateAccount(f.ctx, Account{Name: "demat 2", Entity: Demat, User: "alice"}))
	sub := must(f.book.CreateAccount(f.ctx, Account{Name: "sub broker", Entity: Broker, User: "alice", Parent: f.broker.ID, Custody: demat2.ID}))
	nested := must(f.book.CreatePortfolio(f.ctx, Portfolio{Name: "nested", Account: sub.ID, Parent: f.pf.ID}))
	own := must(f.book.CreatePortfolio(f.ctx, Portfolio{Name: "own", Account: sub.ID}))
	f.deposit(f.broker.ID, "1000", on("2024-01-01"))
	f.deposit(sub.ID, "1000", on("2024-01-01"))
	f.trade(Buy, "INFY", "2", "100", on("2024-01-02"))
	must(f.book.AddTrade(f.ctx, Trade{Operation: Buy, Stock: "TCS", Quantity: Q(3), Price: INR("50"), Portfolio: nested.ID, Timestamp: on("2024-01-02")}))
	must(f.book.AddTrade(f.ctx, Trade{Operation: Buy, Stock: "WIPRO", Quantity: Q(1), Price: INR("400"), Portfolio: own.ID, Timestamp: on("2024-01-02")}))
	must(f.book.AddTrade(f.ctx, Trade{Operation: Sell, Stock: "TCS", Quantity: Q(1), Price: INR("70"), Portfolio: nested.ID, Timestamp: on("2024-01-03")}))

	s := f.book.Snapshot(date.New(2024, 12, 31))
	sum := s.AccountSummary(f.broker.ID)
	// main 200 + nested 100 + own 400, nested counted once.
	checks := []struct {
		name      string
		got, want Money
	}{
		{"Invested", sum.Invested, INR("700")},
		{"NetCash", sum.NetCash, INR("1320")},
		{"NetValue", sum.NetValue, INR("2020")},
		{"Realized", sum.Realized, INR("20")},
		{"Bought", sum.Bought, INR("750")},
	}
	for _, c := range checks {
		if !c.got.Equal(c.want) {
			t.Errorf("AccountSummary().%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if got, want := sum.PortfolioCount, 3; got != want {
		t.Errorf("AccountSummary().PortfolioCount = %d, want %d", got, want)
	}

	overviews := s.Overviews("alice")
	if len(overviews) != 1 {
		t.Fatalf("Overviews() = %d, want 1", len(overviews))
	}
	// broker tree 2020, bank 0, demats 0; the sub broker is rolled up.
	if got, want := overviews[0].NetWorth, INR("2020"); !got.Equal(want) {
		t.Errorf("Overviews() NetWorth = %v, want %v", got, want)
	}
	if got, want := len(overviews[0].Accounts), 4; got != want {
		t.Errorf("Overviews() accounts = %d, want %d", got, want)
	}
}
