package lotbook

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// isinRegex checks for the basic structure: 2 letters, 9 alphanumeric, 1 digit.
var isinRegex = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)

// Stock is reference data about a listed security.
type Stock struct {
	ID       string `yaml:"id"`
	Symbol   string `yaml:"symbol"`
	ISIN     string `yaml:"isin"`
	Name     string `yaml:"name"`     // company name
	Exchange string `yaml:"exchange"` // market the symbol is listed on, e.g. NSE
	SID      string `yaml:"sid"`      // numeric exchange code, e.g. BSE scrip code
}

// StockRef identifies a stock the way import files do: by symbol, ISIN or
// company name, on an exchange.
type StockRef struct {
	Symbol   string `json:"symbol,omitempty"`
	ISIN     string `json:"isin,omitempty"`
	Name     string `json:"name,omitempty"`
	Exchange string `json:"exchange,omitempty"`
}

func (r StockRef) String() string {
	return fmt.Sprintf("symbol=%q isin=%q name=%q exchange=%q", r.Symbol, r.ISIN, r.Name, r.Exchange)
}

// Stocks is a directory of stocks indexed by ID.
type Stocks struct {
	stocks []Stock
	index  map[string]int
}

// NewStocks returns a directory holding the given stocks.
//
// A stock without ID gets "<symbol>.<exchange>", or its symbol when the
// exchange is unknown.
func NewStocks(list ...Stock) (*Stocks, error) {
	s := &Stocks{index: make(map[string]int)}
	for _, st := range list {
		if err := s.Add(st); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// LoadStocks reads a YAML list of stocks.
func LoadStocks(r io.Reader) (*Stocks, error) {
	var list []Stock
	if err := yaml.NewDecoder(r).Decode(&list); err != nil && err != io.EOF {
		return nil, fmt.Errorf("cannot decode stocks: %w", err)
	}
	return NewStocks(list...)
}

// Add registers a stock.
func (s *Stocks) Add(st Stock) error {
	st.ISIN = strings.ToUpper(strings.TrimSpace(st.ISIN))
	st.Exchange = strings.ToUpper(strings.TrimSpace(st.Exchange))
	if st.ID == "" {
		st.ID = st.Symbol
		if st.Exchange != "" {
			st.ID += "." + st.Exchange
		}
	}
	if st.ID == "" {
		return fmt.Errorf("stock %q has neither id nor symbol", st.Name)
	}
	if st.ISIN != "" && !isinRegex.MatchString(st.ISIN) {
		return fmt.Errorf("stock %q: invalid ISIN %q", st.ID, st.ISIN)
	}
	if _, exists := s.index[st.ID]; exists {
		return fmt.Errorf("stock %q declared twice", st.ID)
	}
	s.index[st.ID] = len(s.stocks)
	s.stocks = append(s.stocks, st)
	return nil
}

// Get returns the stock with this ID.
func (s *Stocks) Get(id string) (Stock, bool) {
	i, ok := s.index[id]
	if !ok {
		return Stock{}, false
	}
	return s.stocks[i], true
}

// All returns the stocks sorted by ID.
func (s *Stocks) All() []Stock {
	out := make([]Stock, len(s.stocks))
	copy(out, s.stocks)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Resolve finds the stock ref points to. ISIN is tried first, then symbol,
// then company name, each restricted to ref.Exchange when set. A reference
// matching several stocks is unresolved.
func (s *Stocks) Resolve(ref StockRef) (Stock, error) {
	exchange := strings.ToUpper(strings.TrimSpace(ref.Exchange))
	keys := []struct {
		value string
		field func(Stock) string
	}{
		{strings.TrimSpace(ref.ISIN), func(st Stock) string { return st.ISIN }},
		{strings.TrimSpace(ref.Symbol), func(st Stock) string { return st.Symbol }},
		{strings.TrimSpace(ref.Name), func(st Stock) string { return st.Name }},
	}
	for _, k := range keys {
		if k.value == "" {
			continue
		}
		var found []Stock
		for _, st := range s.stocks {
			if exchange != "" && st.Exchange != exchange {
				continue
			}
			if strings.EqualFold(k.field(st), k.value) {
				found = append(found, st)
			}
		}
		switch len(found) {
		case 0:
			continue
		case 1:
			return found[0], nil
		default:
			return Stock{}, fmt.Errorf("%v matches %d stocks: %w", ref, len(found), ErrUnresolvedStockReference)
		}
	}
	return Stock{}, fmt.Errorf("%v: %w", ref, ErrUnresolvedStockReference)
}
