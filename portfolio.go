package lotbook

// Portfolio groups trades under an account. It stores no balance, values
// are derived from its trades and those of its sub-portfolios.
type Portfolio struct {
	ID      string
	Name    string
	Account string
	Parent  string // parent portfolio, optional
}
