package lotbook

import "github.com/etnz/lotbook/date"

// Dividend is a per-unit payout for holders of Stock on RecordDate. It is
// not a transaction: the amount due is derived from holdings.
type Dividend struct {
	ID         string
	RecordDate date.Date
	Stock      string
	Amount     Money // per unit held
}
