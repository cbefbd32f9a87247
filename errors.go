package lotbook

import "errors"

// Validation errors. Every mutation checks them before changing anything.
var (
	ErrInsufficientFunds           = errors.New("insufficient funds")
	ErrAssetAccountMismatch        = errors.New("asset type not allowed on account")
	ErrInvalidAccountPair          = errors.New("invalid source/destination accounts")
	ErrMissingCustodyAccount       = errors.New("account has no linked custody account")
	ErrUnresolvedStockReference    = errors.New("unresolved stock reference")
	ErrPortfolioAccountTypeInvalid = errors.New("portfolio cannot be attached to a cash-only account")
	ErrInvalidAmount               = errors.New("invalid amount")
	ErrInvalidAccount              = errors.New("invalid account")
	ErrLinkedTransaction           = errors.New("transaction is owned by a trade")
	ErrCurrencyMismatch            = errors.New("currency mismatch")
)

// Lookup errors.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrPortfolioNotFound   = errors.New("portfolio not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTradeNotFound       = errors.New("trade not found")
	ErrDividendNotFound    = errors.New("dividend not found")
)

// ErrConflict is returned by a Journal when the stored state moved under it,
// for instance another process changed an account balance.
var ErrConflict = errors.New("concurrent modification")
