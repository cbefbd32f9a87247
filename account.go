package lotbook

import (
	"fmt"
	"strings"
	"time"
)

// EntityType is the kind of institution an account is held at.
type EntityType string

const (
	Bank       EntityType = "BANK"
	Broker     EntityType = "BROKER"
	Exchange   EntityType = "EXCHANGE"
	Demat      EntityType = "DEMAT"
	Commodity  EntityType = "COMMODITY"
	Crypto     EntityType = "CRYPTO"
	Locker     EntityType = "LOCKER"
	Deposit    EntityType = "DEPOSIT"
	VirtualSub EntityType = "VIRTUAL-SUB"
)

// ParseEntityType parses a string into an EntityType, case insensitive.
func ParseEntityType(s string) (EntityType, error) {
	e := EntityType(strings.ToUpper(strings.TrimSpace(s)))
	switch e {
	case Bank, Broker, Exchange, Demat, Commodity, Crypto, Locker, Deposit, VirtualSub:
		return e, nil
	default:
		return "", fmt.Errorf("unknown entity type: %q", s)
	}
}

// HoldsCash reports whether accounts of this kind carry a cash balance.
func (e EntityType) HoldsCash() bool {
	switch e {
	case Bank, Broker, Exchange, Deposit, VirtualSub:
		return true
	}
	return false
}

// Custodies returns the asset type held by accounts of this kind, if any.
func (e EntityType) Custodies() (AssetType, bool) {
	switch e {
	case Demat:
		return Equity, true
	case Crypto:
		return CryptoAsset, true
	case Commodity, Locker:
		return CommodityAsset, true
	}
	return "", false
}

// CanOwnPortfolio reports whether a portfolio may be attached to accounts of this kind.
func (e EntityType) CanOwnPortfolio() bool {
	switch e {
	case Broker, Demat, Commodity, Crypto:
		return true
	}
	return false
}

// Accepts reports whether a transaction of asset type a may touch accounts of this kind.
func (e EntityType) Accepts(a AssetType) bool {
	if a == Cash {
		return e.HoldsCash()
	}
	held, ok := e.Custodies()
	return ok && held == a
}

// Account is a place where a user holds cash or securities.
//
// Balance is derived: only applying a transaction through a Book changes it.
type Account struct {
	ID       string
	Number   string // external account number, optional
	Name     string
	Entity   EntityType
	User     string
	Currency string
	Balance  Money
	Version  int64     // incremented on each balance change
	Parent   string    // virtual sub-account roll-up, optional
	Custody  string    // linked custody account, optional
	Updated  time.Time // last balance change
}

// walkLimit bounds parent chains and tree walks.
const walkLimit = 64
