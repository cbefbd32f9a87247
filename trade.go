package lotbook

import (
	"fmt"
	"strings"
	"time"
)

// Operation is what a trade does to a position.
type Operation string

const (
	Buy  Operation = "BUY"
	Sell Operation = "SELL"
	Seed Operation = "SEED" // shares credited without cash, gifts and opening balances
)

// ParseOperation parses a string into an Operation, case insensitive.
func ParseOperation(s string) (Operation, error) {
	o := Operation(strings.ToUpper(strings.TrimSpace(s)))
	switch o {
	case Buy, Sell, Seed:
		return o, nil
	default:
		return "", fmt.Errorf("unknown trade operation: %q", s)
	}
}

// Trade is a buy, sell or seed of a stock in a portfolio.
type Trade struct {
	ID         string
	Operation  Operation
	Stock      string // Stock.ID
	Quantity   Quantity
	Price      Money
	Tax        Money
	Brokerage  Money
	Portfolio  string
	Timestamp  time.Time
	Notes      string
	ExternalID string // import trade_id, unique per portfolio
	Seq        int64  // insertion order
}

// Value returns quantity times price.
func (t Trade) Value() Money { return t.Price.Mul(t.Quantity) }

// Leg is the role a transaction plays for its trade.
type Leg string

const (
	CashLeg  Leg = "cash"
	AssetLeg Leg = "asset"
)

// TradeLink maps a trade to a transaction it generated.
type TradeLink struct {
	Trade       string
	Transaction string
	Leg         Leg
}

// validate checks the trade's own fields.
func (t Trade) validate() error {
	switch t.Operation {
	case Buy, Sell, Seed:
	default:
		return fmt.Errorf("unknown trade operation %q: %w", t.Operation, ErrInvalidAmount)
	}
	if t.Stock == "" {
		return fmt.Errorf("trade without stock: %w", ErrUnresolvedStockReference)
	}
	if t.Quantity.IsNegative() {
		return fmt.Errorf("negative quantity %v: %w", t.Quantity, ErrInvalidAmount)
	}
	for name, m := range map[string]Money{"price": t.Price, "tax": t.Tax, "brokerage": t.Brokerage} {
		if m.IsNegative() {
			return fmt.Errorf("negative %s %v: %w", name, m, ErrInvalidAmount)
		}
	}
	return nil
}
