package renderer

import (
	"time"

	"github.com/etnz/lotbook"
	"github.com/etnz/lotbook/date"
)

// Holdings is the positions report of a portfolio.
type Holdings struct {
	Portfolio string
	Date      date.Date
	Positions []lotbook.Position
	Invested  lotbook.Money
	Realized  lotbook.Money
	Dividends lotbook.Money
	Unmatched []lotbook.UnmatchedSell
}

// NewHoldings collects the holdings of portfolio p as seen by s.
func NewHoldings(s *lotbook.Snapshot, p lotbook.Portfolio) *Holdings {
	return &Holdings{
		Portfolio: p.Name,
		Date:      s.On(),
		Positions: s.Positions(p.ID),
		Invested:  s.InvestedValue(p.ID),
		Realized:  s.RealizedGain(p.ID),
		Dividends: s.DividendIncome(p.ID),
		Unmatched: s.Unmatched(p.ID),
	}
}

// Overview is the net worth report of a user.
type Overview struct {
	User       string
	Date       date.Date
	Currencies []OverviewSection
}

// OverviewSection is the overview of the accounts held in one currency.
type OverviewSection struct {
	lotbook.Overview
	Rows []SummaryRow
}

type SummaryRow struct {
	Name string
	lotbook.Summary
}

// NewOverview collects the overviews of user as seen by s.
func NewOverview(s *lotbook.Snapshot, user string, accounts []lotbook.Account) *Overview {
	names := make(map[string]string, len(accounts))
	for _, a := range accounts {
		names[a.ID] = a.Name
	}
	o := &Overview{User: user, Date: s.On()}
	for _, ov := range s.Overviews(user) {
		sec := OverviewSection{Overview: ov}
		for _, sum := range ov.Accounts {
			name, ok := names[sum.Account]
			if !ok {
				name = sum.Account
			}
			sec.Rows = append(sec.Rows, SummaryRow{Name: name, Summary: sum})
		}
		o.Currencies = append(o.Currencies, sec)
	}
	return o
}

// Accounts is the list of accounts report.
type Accounts struct {
	Date date.Date
	Rows []AccountRow
}

type AccountRow struct {
	ID      string
	Name    string
	Entity  lotbook.EntityType
	User    string
	Balance lotbook.Money
	Custody string // name of the custody account
	Parent  string // name of the parent account
}

// NewAccounts lists accounts with their cash balance as seen by s.
func NewAccounts(s *lotbook.Snapshot, accounts []lotbook.Account) *Accounts {
	names := make(map[string]string, len(accounts))
	for _, a := range accounts {
		names[a.ID] = a.Name
	}
	r := &Accounts{Date: s.On()}
	for _, a := range accounts {
		r.Rows = append(r.Rows, AccountRow{
			ID:      a.ID,
			Name:    a.Name,
			Entity:  a.Entity,
			User:    a.User,
			Balance: s.NetCash(a.ID),
			Custody: names[a.Custody],
			Parent:  names[a.Parent],
		})
	}
	return r
}

// Ledger is a list of transactions.
type Ledger struct {
	Rows []LedgerRow
}

type LedgerRow struct {
	ID        string
	Timestamp time.Time
	Kind      lotbook.Kind
	Asset     lotbook.AssetType
	From      string
	To        string
	Amount    lotbook.Money
	Notes     string
}

// NewLedger lists transactions, naming accounts from accounts.
func NewLedger(txs []lotbook.Transaction, accounts []lotbook.Account) *Ledger {
	names := make(map[string]string, len(accounts))
	for _, a := range accounts {
		names[a.ID] = a.Name
	}
	l := &Ledger{}
	for _, tx := range txs {
		l.Rows = append(l.Rows, LedgerRow{
			ID:        tx.ID,
			Timestamp: tx.Timestamp,
			Kind:      tx.Kind,
			Asset:     tx.Asset,
			From:      names[tx.Source],
			To:        names[tx.Destination],
			Amount:    tx.Amount,
			Notes:     tx.Notes,
		})
	}
	return l
}

// Import is the report of an import batch.
type Import struct {
	Total    int
	Created  int
	Updated  int
	Failed   int
	Failures []ImportFailure
}

type ImportFailure struct {
	Index   int
	TradeID string
	Error   string
}

// NewImport summarizes an import report.
func NewImport(r *lotbook.ImportReport) *Import {
	out := &Import{Total: len(r.Results), Created: r.Created, Updated: r.Updated, Failed: r.Failed}
	for _, res := range r.Results {
		if res.Err != nil {
			out.Failures = append(out.Failures, ImportFailure{Index: res.Index, TradeID: res.TradeID, Error: res.Err.Error()})
		}
	}
	return out
}

// Reconciliation lists the trades compensating corporate actions.
type Reconciliation struct {
	Trades []lotbook.Trade
}
