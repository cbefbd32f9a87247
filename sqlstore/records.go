package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/etnz/lotbook"
	"github.com/etnz/lotbook/date"
	"github.com/sirupsen/logrus"
)

const timeFormat = time.RFC3339Nano

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeFormat, s)
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Load reads the whole book.
func (s *Store) Load(ctx context.Context) (*lotbook.State, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var st lotbook.State
	loaders := []struct {
		table string
		query string
		scan  func(scanner) error
	}{
		{"accounts", `SELECT id, number, name, entity, user_id, currency, balance, version, parent, custody, updated FROM accounts`,
			func(r scanner) error {
				a, err := scanAccount(r)
				st.Accounts = append(st.Accounts, a)
				return err
			}},
		{"portfolios", `SELECT id, name, account, parent FROM portfolios`,
			func(r scanner) error {
				var p lotbook.Portfolio
				err := r.Scan(&p.ID, &p.Name, &p.Account, &p.Parent)
				st.Portfolios = append(st.Portfolios, p)
				return err
			}},
		{"trades", `SELECT id, operation, stock, quantity, price, tax, brokerage, currency, portfolio, timestamp, notes, external_id, seq FROM trades ORDER BY seq`,
			func(r scanner) error {
				t, err := scanTrade(r)
				st.Trades = append(st.Trades, t)
				return err
			}},
		{"transactions", `SELECT id, kind, asset, source, destination, amount, currency, timestamp, notes, seq FROM transactions ORDER BY seq`,
			func(r scanner) error {
				t, err := scanTransaction(r)
				st.Transactions = append(st.Transactions, t)
				return err
			}},
		{"trade_links", `SELECT tx, trade, leg FROM trade_links`,
			func(r scanner) error {
				var l lotbook.TradeLink
				var leg string
				err := r.Scan(&l.Transaction, &l.Trade, &leg)
				l.Leg = lotbook.Leg(leg)
				st.Links = append(st.Links, l)
				return err
			}},
		{"dividends", `SELECT id, record_date, stock, amount, currency FROM dividends`,
			func(r scanner) error {
				d, err := scanDividend(r)
				st.Dividends = append(st.Dividends, d)
				return err
			}},
	}
	for _, l := range loaders {
		rows, err := tx.QueryContext(ctx, l.query)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", l.table, err)
		}
		for rows.Next() {
			if err := l.scan(rows); err != nil {
				rows.Close()
				return nil, fmt.Errorf("cannot read %s: %w", l.table, err)
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", l.table, err)
		}
	}
	s.log.WithFields(logrus.Fields{
		"accounts":     len(st.Accounts),
		"portfolios":   len(st.Portfolios),
		"trades":       len(st.Trades),
		"transactions": len(st.Transactions),
	}).Debug("book loaded")
	return &st, nil
}

func scanAccount(r scanner) (a lotbook.Account, err error) {
	var entity, balance, updated string
	if err = r.Scan(&a.ID, &a.Number, &a.Name, &entity, &a.User, &a.Currency, &balance, &a.Version, &a.Parent, &a.Custody, &updated); err != nil {
		return a, err
	}
	a.Entity = lotbook.EntityType(entity)
	if a.Balance, err = lotbook.ParseMoney(balance, a.Currency); err != nil {
		return a, fmt.Errorf("account %s: %w", a.ID, err)
	}
	if a.Updated, err = parseTime(updated); err != nil {
		return a, fmt.Errorf("account %s: %w", a.ID, err)
	}
	return a, nil
}

func scanTrade(r scanner) (t lotbook.Trade, err error) {
	var op, quantity, price, tax, brokerage, currency, ts string
	if err = r.Scan(&t.ID, &op, &t.Stock, &quantity, &price, &tax, &brokerage, &currency, &t.Portfolio, &ts, &t.Notes, &t.ExternalID, &t.Seq); err != nil {
		return t, err
	}
	t.Operation = lotbook.Operation(op)
	if t.Quantity, err = lotbook.ParseQuantity(quantity); err != nil {
		return t, fmt.Errorf("trade %s: %w", t.ID, err)
	}
	for _, m := range []struct {
		dst *lotbook.Money
		src string
	}{{&t.Price, price}, {&t.Tax, tax}, {&t.Brokerage, brokerage}} {
		if *m.dst, err = lotbook.ParseMoney(m.src, currency); err != nil {
			return t, fmt.Errorf("trade %s: %w", t.ID, err)
		}
	}
	if t.Timestamp, err = parseTime(ts); err != nil {
		return t, fmt.Errorf("trade %s: %w", t.ID, err)
	}
	return t, nil
}

func scanTransaction(r scanner) (t lotbook.Transaction, err error) {
	var kind, asset, amount, currency, ts string
	if err = r.Scan(&t.ID, &kind, &asset, &t.Source, &t.Destination, &amount, &currency, &ts, &t.Notes, &t.Seq); err != nil {
		return t, err
	}
	t.Kind = lotbook.Kind(kind)
	t.Asset = lotbook.AssetType(asset)
	if t.Amount, err = lotbook.ParseMoney(amount, currency); err != nil {
		return t, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	if t.Timestamp, err = parseTime(ts); err != nil {
		return t, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	return t, nil
}

func scanDividend(r scanner) (d lotbook.Dividend, err error) {
	var recordDate, amount, currency string
	if err = r.Scan(&d.ID, &recordDate, &d.Stock, &amount, &currency); err != nil {
		return d, err
	}
	if d.RecordDate, err = date.Parse(recordDate); err != nil {
		return d, fmt.Errorf("dividend %s: %w", d.ID, err)
	}
	if d.Amount, err = lotbook.ParseMoney(amount, currency); err != nil {
		return d, fmt.Errorf("dividend %s: %w", d.ID, err)
	}
	return d, nil
}

// Commit writes a changeset in a single SQL transaction.
//
// Accounts listed in cs.Versions are updated only if their stored version
// still matches, otherwise nothing is written and lotbook.ErrConflict is
// returned.
func (s *Store) Commit(ctx context.Context, cs *lotbook.Changeset) error {
	if cs.Empty() {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := writeChanges(ctx, tx, cs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cannot commit: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"accounts":     len(cs.Accounts),
		"trades":       len(cs.Trades) + len(cs.DeletedTrades),
		"transactions": len(cs.Transactions) + len(cs.DeletedTransactions),
	}).Debug("changeset committed")
	return nil
}

func writeChanges(ctx context.Context, tx *sql.Tx, cs *lotbook.Changeset) error {
	for _, a := range cs.Accounts {
		if err := putAccount(ctx, tx, a, cs.Versions); err != nil {
			return err
		}
	}
	for _, p := range cs.Portfolios {
		if _, err := tx.ExecContext(ctx, `INSERT INTO portfolios (id, name, account, parent) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, account = excluded.account, parent = excluded.parent`,
			p.ID, p.Name, p.Account, p.Parent); err != nil {
			return fmt.Errorf("cannot write portfolio %s: %w", p.ID, err)
		}
	}
	for _, t := range cs.Trades {
		if _, err := tx.ExecContext(ctx, `INSERT INTO trades (id, operation, stock, quantity, price, tax, brokerage, currency, portfolio, timestamp, notes, external_id, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET operation = excluded.operation, stock = excluded.stock, quantity = excluded.quantity,
				price = excluded.price, tax = excluded.tax, brokerage = excluded.brokerage, currency = excluded.currency,
				portfolio = excluded.portfolio, timestamp = excluded.timestamp, notes = excluded.notes,
				external_id = excluded.external_id, seq = excluded.seq`,
			t.ID, string(t.Operation), t.Stock, t.Quantity.String(),
			t.Price.Decimal().String(), t.Tax.Decimal().String(), t.Brokerage.Decimal().String(), t.Price.Currency(),
			t.Portfolio, formatTime(t.Timestamp), t.Notes, t.ExternalID, t.Seq); err != nil {
			return fmt.Errorf("cannot write trade %s: %w", t.ID, err)
		}
	}
	for _, t := range cs.Transactions {
		if _, err := tx.ExecContext(ctx, `INSERT INTO transactions (id, kind, asset, source, destination, amount, currency, timestamp, notes, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET kind = excluded.kind, asset = excluded.asset, source = excluded.source,
				destination = excluded.destination, amount = excluded.amount, currency = excluded.currency,
				timestamp = excluded.timestamp, notes = excluded.notes, seq = excluded.seq`,
			t.ID, string(t.Kind), string(t.Asset), t.Source, t.Destination,
			t.Amount.Decimal().String(), t.Amount.Currency(), formatTime(t.Timestamp), t.Notes, t.Seq); err != nil {
			return fmt.Errorf("cannot write transaction %s: %w", t.ID, err)
		}
	}
	for _, l := range cs.Links {
		if _, err := tx.ExecContext(ctx, `INSERT INTO trade_links (tx, trade, leg) VALUES (?, ?, ?)
			ON CONFLICT(tx) DO UPDATE SET trade = excluded.trade, leg = excluded.leg`,
			l.Transaction, l.Trade, string(l.Leg)); err != nil {
			return fmt.Errorf("cannot write link of transaction %s: %w", l.Transaction, err)
		}
	}
	for _, d := range cs.Dividends {
		if _, err := tx.ExecContext(ctx, `INSERT INTO dividends (id, record_date, stock, amount, currency) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET record_date = excluded.record_date, stock = excluded.stock,
				amount = excluded.amount, currency = excluded.currency`,
			d.ID, d.RecordDate.String(), d.Stock, d.Amount.Decimal().String(), d.Amount.Currency()); err != nil {
			return fmt.Errorf("cannot write dividend %s: %w", d.ID, err)
		}
	}

	deletes := []struct {
		query string
		ids   []string
	}{
		{`DELETE FROM trade_links WHERE tx = ?`, cs.DeletedLinks},
		{`DELETE FROM transactions WHERE id = ?`, cs.DeletedTransactions},
		{`DELETE FROM trades WHERE id = ?`, cs.DeletedTrades},
		{`DELETE FROM dividends WHERE id = ?`, cs.DeletedDividends},
		{`DELETE FROM portfolios WHERE id = ?`, cs.DeletedPortfolios},
		{`DELETE FROM accounts WHERE id = ?`, cs.DeletedAccounts},
	}
	for _, d := range deletes {
		for _, id := range d.ids {
			if _, err := tx.ExecContext(ctx, d.query, id); err != nil {
				return fmt.Errorf("cannot delete %s: %w", id, err)
			}
		}
	}
	return nil
}

// putAccount inserts a new account or updates an existing one when its
// stored version is the expected one.
func putAccount(ctx context.Context, tx *sql.Tx, a lotbook.Account, versions map[string]int64) error {
	args := []any{a.Number, a.Name, string(a.Entity), a.User, a.Currency, a.Balance.Decimal().String(),
		a.Version, a.Parent, a.Custody, formatTime(a.Updated)}
	prev, exists := versions[a.ID]
	if !exists {
		if _, err := tx.ExecContext(ctx, `INSERT INTO accounts (number, name, entity, user_id, currency, balance, version, parent, custody, updated, id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, append(args, a.ID)...); err != nil {
			return fmt.Errorf("cannot write account %s: %w", a.ID, err)
		}
		return nil
	}
	res, err := tx.ExecContext(ctx, `UPDATE accounts SET number = ?, name = ?, entity = ?, user_id = ?, currency = ?, balance = ?,
		version = ?, parent = ?, custody = ?, updated = ? WHERE id = ? AND version = ?`, append(args, a.ID, prev)...)
	if err != nil {
		return fmt.Errorf("cannot write account %s: %w", a.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("account %s changed since version %d: %w", a.ID, prev, lotbook.ErrConflict)
	}
	return nil
}
