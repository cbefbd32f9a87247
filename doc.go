// Package lotbook tracks money and securities held across linked accounts,
// and reconstructs for any day the cash, lots and realized gains of each
// portfolio.
//
// The core functionalities include:
//   - Ledger Store: a Book holds accounts, transactions, trades, portfolios
//     and dividends. It is the only place where cash balances change, and it
//     validates every mutation before applying it.
//   - Trade Translation: a BUY, SELL or SEED trade is booked as a cash leg on
//     the portfolio's account and an asset leg on its linked custody account.
//     Legs follow their trade on update and delete.
//   - FIFO Lot Engine: positions, open lots and realized gains are replayed
//     from trades up to a cutoff day.
//   - Valuation: net cash, invested value, dividends and user overviews are
//     aggregated over account and portfolio trees.
//   - Reconciliation: zero-price trades are derived from split and bonus
//     issues so that historical imports match post-action quantities.
//
// Transactions are the cash and audit ledger. Holdings are always derived
// from trades, never from the asset legs.
//
// The `lotbook` command-line tool is built on this package, the sqlstore
// package persists it.
package lotbook
