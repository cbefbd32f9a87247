package lotbook

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the direction of a transaction.
type Kind string

const (
	Credit   Kind = "CREDIT"   // external inflow into Destination
	Debit    Kind = "DEBIT"    // external outflow from Source
	Transfer Kind = "TRANSFER" // from Source to Destination
)

// ParseKind parses a string into a Kind, case insensitive.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	switch k {
	case Credit, Debit, Transfer:
		return k, nil
	default:
		return "", fmt.Errorf("unknown transaction kind: %q", s)
	}
}

// AssetType is what a transaction moves.
type AssetType string

const (
	Cash           AssetType = "CASH"
	Equity         AssetType = "EQUITY"
	CryptoAsset    AssetType = "CRYPTO"
	CommodityAsset AssetType = "COMMODITY"
)

// ParseAssetType parses a string into an AssetType, case insensitive.
func ParseAssetType(s string) (AssetType, error) {
	a := AssetType(strings.ToUpper(strings.TrimSpace(s)))
	switch a {
	case Cash, Equity, CryptoAsset, CommodityAsset:
		return a, nil
	default:
		return "", fmt.Errorf("unknown asset type: %q", s)
	}
}

// Transaction moves an amount of an asset between accounts.
//
// Only CASH transactions change account balances, the others record
// provenance of securities held in custody accounts.
type Transaction struct {
	ID          string
	Kind        Kind
	Asset       AssetType
	Source      string
	Destination string
	Amount      Money
	Timestamp   time.Time
	Notes       string
	Seq         int64 // insertion order
}

// sides returns the accounts the transaction debits and credits, empty when
// the kind has no such side.
func (tx Transaction) sides() (from, to string) {
	switch tx.Kind {
	case Credit:
		return "", tx.Destination
	case Debit:
		return tx.Source, ""
	default:
		return tx.Source, tx.Destination
	}
}

// delta returns the signed effect of tx on account id's cash balance.
func (tx Transaction) delta(id string) Money {
	var d Money
	if tx.Asset != Cash {
		return d
	}
	from, to := tx.sides()
	if from == id {
		d = d.Sub(tx.Amount)
	}
	if to == id {
		d = d.Add(tx.Amount)
	}
	return d
}

// touches reports whether tx names account id on either side.
func (tx Transaction) touches(id string) bool {
	return id != "" && (tx.Source == id || tx.Destination == id)
}
