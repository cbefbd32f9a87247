package lotbook

import (
	"maps"
	"slices"
)

// --- tree walks ---

// subAccounts returns id and its sub-accounts, parents first. Branches in
// another currency than id are left out of the roll-up.
func (s *Snapshot) subAccounts(id string) []string {
	root, ok := s.accounts[id]
	if !ok {
		return nil
	}
	return walk(id, func(parent string) []string {
		var children []string
		for _, a := range sortedValues(s.accounts) {
			if a.Parent == parent && a.Currency == root.Currency {
				children = append(children, a.ID)
			}
		}
		return children
	})
}

// subPortfolios returns id and its sub-portfolios, parents first. Branches
// in another currency than id are left out.
func (s *Snapshot) subPortfolios(id string) []string {
	if _, ok := s.portfolios[id]; !ok {
		return nil
	}
	cur := s.portfolioCurrency(id)
	return walk(id, func(parent string) []string {
		var children []string
		for _, p := range sortedValues(s.portfolios) {
			if p.Parent == parent && s.portfolioCurrency(p.ID) == cur {
				children = append(children, p.ID)
			}
		}
		return children
	})
}

// walk visits a tree breadth first from root. Nodes are visited once and no
// deeper than walkLimit.
func walk(root string, children func(string) []string) []string {
	out := []string{root}
	seen := map[string]bool{root: true}
	level := []string{root}
	for depth := 0; len(level) > 0 && depth < walkLimit; depth++ {
		var next []string
		for _, id := range level {
			for _, c := range children(id) {
				if !seen[c] {
					seen[c] = true
					next = append(next, c)
				}
			}
		}
		out = append(out, next...)
		level = next
	}
	return out
}

// rootPortfolios returns the portfolios owned by accounts, whose parent is
// not itself owned by accounts.
func (s *Snapshot) rootPortfolios(accounts []string) []string {
	owned := map[string]bool{}
	for _, id := range accounts {
		owned[id] = true
	}
	var out []string
	for _, p := range sortedValues(s.portfolios) {
		if !owned[p.Account] {
			continue
		}
		if parent, ok := s.portfolios[p.Parent]; ok && owned[parent.Account] {
			continue
		}
		out = append(out, p.ID)
	}
	return out
}

// forest returns the root portfolios of accounts and all their sub-portfolios.
func (s *Snapshot) forest(accounts []string) []string {
	var out []string
	for _, root := range s.rootPortfolios(accounts) {
		for _, p := range s.subPortfolios(root) {
			if !slices.Contains(out, p) {
				out = append(out, p)
			}
		}
	}
	return out
}

func (s *Snapshot) accountCurrency(id string) string {
	if a, ok := s.accounts[id]; ok {
		return a.Currency
	}
	return s.currency
}

// --- cash ---

// NetCash returns credits minus debits of cash into the account and its
// sub-accounts. A transfer counts on both of its sides, so transfers within
// the tree cancel out.
func (s *Snapshot) NetCash(account string) Money {
	total := M(0, s.accountCurrency(account))
	for _, id := range s.subAccounts(account) {
		for _, tx := range s.transactions {
			if tx.touches(id) {
				total = total.Add(tx.delta(id))
			}
		}
	}
	return total
}

// --- portfolio values ---

// InvestedValue returns the cost of the open lots of the portfolio and of
// its sub-portfolios.
func (s *Snapshot) InvestedValue(portfolio string) Money {
	total := M(0, s.portfolioCurrency(portfolio))
	for _, p := range s.subPortfolios(portfolio) {
		for _, pos := range s.Positions(p) {
			total = total.Add(pos.Cost)
		}
	}
	return total
}

// CurrentValue returns the value of the portfolio at cost basis. There is
// no price source, so it equals InvestedValue.
func (s *Snapshot) CurrentValue(portfolio string) Money { return s.InvestedValue(portfolio) }

// UnrealizedGain returns CurrentValue minus InvestedValue.
func (s *Snapshot) UnrealizedGain(portfolio string) Money {
	return s.CurrentValue(portfolio).Sub(s.InvestedValue(portfolio))
}

// Dividends returns the dividends due to the portfolio for a stock: for each
// dividend of the stock, the net quantity held on its record date times the
// per-unit amount. Sub-portfolios are not included.
func (s *Snapshot) Dividends(portfolio, stock string) Money {
	total := M(0, s.portfolioCurrency(portfolio))
	for _, d := range s.dividends {
		if d.Stock != stock {
			continue
		}
		held := s.Held(portfolio, stock, d.RecordDate)
		if !held.IsPositive() {
			continue
		}
		total = total.Add(d.Amount.In(total.Currency()).Mul(held))
	}
	return total
}

// DividendIncome returns the dividends due to the portfolio for all the
// stocks it traded.
func (s *Snapshot) DividendIncome(portfolio string) Money {
	total := M(0, s.portfolioCurrency(portfolio))
	seen := map[string]bool{}
	for _, tr := range s.trades {
		if tr.Portfolio == portfolio && !seen[tr.Stock] {
			seen[tr.Stock] = true
			total = total.Add(s.Dividends(portfolio, tr.Stock))
		}
	}
	return total
}

// Flows sums the trades of a portfolio.
type Flows struct {
	Bought    Money // quantity times price of buys
	Sold      Money // quantity times price of sells
	Taxes     Money
	Brokerage Money
}

// Flows returns the trade totals of a portfolio. Sub-portfolios are not included.
func (s *Snapshot) Flows(portfolio string) Flows {
	cur := s.portfolioCurrency(portfolio)
	f := Flows{Bought: M(0, cur), Sold: M(0, cur), Taxes: M(0, cur), Brokerage: M(0, cur)}
	for _, tr := range s.trades {
		if tr.Portfolio != portfolio {
			continue
		}
		switch tr.Operation {
		case Buy:
			f.Bought = f.Bought.Add(tr.Value())
		case Sell:
			f.Sold = f.Sold.Add(tr.Value())
		}
		f.Taxes = f.Taxes.Add(tr.Tax)
		f.Brokerage = f.Brokerage.Add(tr.Brokerage)
	}
	return f
}

// --- account level ---

// AccountNetValue returns the net cash of the account and its sub-accounts
// plus the invested value of their portfolios.
func (s *Snapshot) AccountNetValue(account string) Money {
	return s.AccountSummary(account).NetValue
}

// Summary is the valuation of an account tree.
type Summary struct {
	Account        string
	Currency       string
	NetCash        Money
	Invested       Money
	Current        Money
	Realized       Money
	Unrealized     Money
	Dividends      Money
	Taxes          Money
	Brokerage      Money
	Bought         Money
	Sold           Money
	NetValue       Money // NetCash + Invested
	NetGains       Money // Realized + Unrealized + Dividends - Taxes - Brokerage
	Unmatched      []UnmatchedSell
	PortfolioCount int
}

// AccountSummary values the account, its sub-accounts and their portfolios.
// Taxes and brokerage are reported, they were already paid from cash.
func (s *Snapshot) AccountSummary(account string) Summary {
	cur := s.accountCurrency(account)
	zero := M(0, cur)
	sum := Summary{
		Account: account, Currency: cur,
		NetCash: s.NetCash(account), Invested: zero, Current: zero, Realized: zero, Unrealized: zero,
		Dividends: zero, Taxes: zero, Brokerage: zero, Bought: zero, Sold: zero,
	}
	tree := s.subAccounts(account)
	for _, root := range s.rootPortfolios(tree) {
		sum.Invested = sum.Invested.Add(s.InvestedValue(root))
		sum.Current = sum.Current.Add(s.CurrentValue(root))
	}
	for _, p := range s.forest(tree) {
		sum.PortfolioCount++
		sum.Realized = sum.Realized.Add(s.RealizedGain(p))
		sum.Dividends = sum.Dividends.Add(s.DividendIncome(p))
		f := s.Flows(p)
		sum.Taxes = sum.Taxes.Add(f.Taxes)
		sum.Brokerage = sum.Brokerage.Add(f.Brokerage)
		sum.Bought = sum.Bought.Add(f.Bought)
		sum.Sold = sum.Sold.Add(f.Sold)
		sum.Unmatched = append(sum.Unmatched, s.Unmatched(p)...)
	}
	sum.Unrealized = sum.Current.Sub(sum.Invested)
	sum.NetValue = sum.NetCash.Add(sum.Invested)
	sum.NetGains = sum.Realized.Add(sum.Unrealized).Add(sum.Dividends).Sub(sum.Taxes).Sub(sum.Brokerage)
	return sum
}

// Overview is the user level summary, for one currency.
type Overview struct {
	User       string
	Currency   string
	NetWorth   Money
	LiquidCash Money
	Invested   Money
	Realized   Money
	Unrealized Money
	Dividends  Money
	Taxes      Money
	Brokerage  Money
	TotalBuy   Money
	TotalSell  Money
	NetGains   Money
	Accounts   []Summary
}

// Overviews returns one overview per currency of the user's top level
// accounts, sorted by currency.
func (s *Snapshot) Overviews(user string) []Overview {
	byCur := map[string]*Overview{}
	for _, a := range sortedValues(s.accounts) {
		if a.User != user {
			continue
		}
		if parent, ok := s.accounts[a.Parent]; ok && parent.User == user && parent.Currency == a.Currency {
			continue // rolled up into its parent
		}
		sum := s.AccountSummary(a.ID)
		o, ok := byCur[sum.Currency]
		if !ok {
			zero := M(0, sum.Currency)
			o = &Overview{User: user, Currency: sum.Currency, NetWorth: zero, LiquidCash: zero, Invested: zero, Realized: zero,
				Unrealized: zero, Dividends: zero, Taxes: zero, Brokerage: zero, TotalBuy: zero, TotalSell: zero, NetGains: zero}
			byCur[sum.Currency] = o
		}
		o.NetWorth = o.NetWorth.Add(sum.NetValue)
		o.LiquidCash = o.LiquidCash.Add(sum.NetCash)
		o.Invested = o.Invested.Add(sum.Invested)
		o.Realized = o.Realized.Add(sum.Realized)
		o.Unrealized = o.Unrealized.Add(sum.Unrealized)
		o.Dividends = o.Dividends.Add(sum.Dividends)
		o.Taxes = o.Taxes.Add(sum.Taxes)
		o.Brokerage = o.Brokerage.Add(sum.Brokerage)
		o.TotalBuy = o.TotalBuy.Add(sum.Bought)
		o.TotalSell = o.TotalSell.Add(sum.Sold)
		o.NetGains = o.NetGains.Add(sum.NetGains)
		o.Accounts = append(o.Accounts, sum)
	}
	var out []Overview
	for _, c := range slices.Sorted(maps.Keys(byCur)) {
		out = append(out, *byCur[c])
	}
	return out
}
