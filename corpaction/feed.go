// Package corpaction loads corporate action feeds (stock splits and bonus
// issues) and serves them per stock to the reconciler.
package corpaction

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/etnz/lotbook"
	"github.com/etnz/lotbook/date"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DateLayouts are the ex-date formats found in feeds.
var DateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"02 January 2006",
	"2 January 2006",
	"02-Jan-2006",
}

// Fields maps record attributes to JSONPath expressions evaluated on each record.
type Fields struct {
	Name   string // company name
	Symbol string // NSE symbol
	SID    string // BSE scrip code
	ISIN   string
	ExDate string
	OldFV  string // split only
	NewFV  string // split only
	Ratio  string // bonus only, "a:b"
}

// DefaultFields match the screener feeds.
var DefaultFields = Fields{
	Name:   `$.stock`,
	Symbol: `$.nse`,
	SID:    `$.bse`,
	ISIN:   `$.isin`,
	ExDate: `$["ex-date"]`,
	OldFV:  `$["old-face-value"]`,
	NewFV:  `$["new-face-value"]`,
	Ratio:  `$.ratio`,
}

// Or returns f with its empty paths taken from def.
func (f Fields) Or(def Fields) Fields {
	or := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	return Fields{
		Name:   or(f.Name, def.Name),
		Symbol: or(f.Symbol, def.Symbol),
		SID:    or(f.SID, def.SID),
		ISIN:   or(f.ISIN, def.ISIN),
		ExDate: or(f.ExDate, def.ExDate),
		OldFV:  or(f.OldFV, def.OldFV),
		NewFV:  or(f.NewFV, def.NewFV),
		Ratio:  or(f.Ratio, def.Ratio),
	}
}

// Config describes one feed.
type Config struct {
	Kind    lotbook.ActionKind
	Source  Source
	Records string // JSONPath selecting the record array, "$" when empty
	Fields  Fields // empty paths default to DefaultFields
}

// Feed is a loaded set of corporate actions, indexed by stock ID.
//
// A Feed is safe for concurrent use.
type Feed struct {
	configs []Config
	stocks  *lotbook.Stocks
	log     logrus.FieldLogger

	mu       sync.RWMutex
	actions  map[string][]lotbook.CorporateAction
	loadedAt time.Time
	skipped  int
}

// New returns an unloaded feed resolving records against stocks.
func New(stocks *lotbook.Stocks, log logrus.FieldLogger, configs ...Config) *Feed {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	return &Feed{configs: configs, stocks: stocks, log: log}
}

// Load reads every source unless the feed is already loaded.
func (f *Feed) Load(ctx context.Context) error {
	f.mu.RLock()
	loaded := !f.loadedAt.IsZero()
	f.mu.RUnlock()
	if loaded {
		return nil
	}
	return f.Refresh(ctx)
}

// Refresh reads every source again and replaces the loaded actions.
// On error the previous actions are kept.
func (f *Feed) Refresh(ctx context.Context) error {
	actions := make(map[string][]lotbook.CorporateAction)
	skipped := 0
	for _, c := range f.configs {
		n, s, err := f.read(ctx, c, actions)
		if err != nil {
			return fmt.Errorf("cannot load %s feed from %v: %w", c.Kind, c.Source, err)
		}
		skipped += s
		f.log.WithFields(logrus.Fields{"kind": c.Kind, "source": c.Source.String(), "actions": n, "skipped": s}).Info("corporate actions loaded")
	}
	for _, list := range actions {
		sort.SliceStable(list, func(i, j int) bool { return list[i].ExDate.Before(list[j].ExDate) })
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = actions
	f.skipped = skipped
	f.loadedAt = time.Now()
	return nil
}

// LoadedAt returns the time of the last successful load, zero if never loaded.
func (f *Feed) LoadedAt() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.loadedAt
}

// Skipped returns the number of records of the last load that matched no stock.
func (f *Feed) Skipped() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.skipped
}

// Actions returns the actions of a stock sorted by ex-date.
func (f *Feed) Actions(stock string) []lotbook.CorporateAction {
	f.mu.RLock()
	defer f.mu.RUnlock()
	list := f.actions[stock]
	out := make([]lotbook.CorporateAction, len(list))
	copy(out, list)
	return out
}

// read appends the actions of one feed to actions and returns how many
// actions were added and how many records were skipped.
func (f *Feed) read(ctx context.Context, c Config, actions map[string][]lotbook.CorporateAction) (n, skipped int, err error) {
	if c.Kind != lotbook.Split && c.Kind != lotbook.Bonus {
		return 0, 0, fmt.Errorf("unknown corporate action kind %q", c.Kind)
	}
	data, err := c.Source.Fetch(ctx)
	if err != nil {
		return 0, 0, err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, 0, fmt.Errorf("invalid JSON: %w", err)
	}
	path := c.Records
	if path == "" {
		path = "$"
	}
	selected, err := jsonpath.Get(path, doc)
	if err != nil {
		return 0, 0, fmt.Errorf("cannot select records with %q: %w", path, err)
	}
	records, ok := selected.([]any)
	if !ok {
		return 0, 0, fmt.Errorf("records at %q are not an array", path)
	}
	fields := c.Fields.Or(DefaultFields)

	for i, rec := range records {
		r := record{fields: fields, rec: rec}
		stocks := f.match(r)
		if len(stocks) == 0 {
			skipped++
			f.log.WithFields(logrus.Fields{"kind": c.Kind, "record": i, "name": r.str(fields.Name)}).Debug("no stock for corporate action")
			continue
		}
		action, err := r.action(c.Kind)
		if err != nil {
			skipped++
			f.log.WithError(err).WithFields(logrus.Fields{"kind": c.Kind, "record": i}).Warn("invalid corporate action")
			continue
		}
		for _, id := range stocks {
			action.Stock = id
			actions[id] = append(actions[id], action)
			n++
		}
	}
	return n, skipped, nil
}

// match returns the IDs of the stocks a record applies to: every listing
// sharing the ISIN, else listings matching the NSE symbol or BSE code, else
// the company name.
func (f *Feed) match(r record) []string {
	isin := strings.ToUpper(r.str(r.fields.ISIN))
	symbol := strings.ToUpper(r.str(r.fields.Symbol))
	sid := strings.ToUpper(r.str(r.fields.SID))
	name := r.str(r.fields.Name)

	all := f.stocks.All()
	var byISIN, byCode, byName []string
	for _, st := range all {
		switch {
		case isin != "" && st.ISIN == isin:
			byISIN = append(byISIN, st.ID)
		case symbol != "" && strings.EqualFold(st.Symbol, symbol) && (st.Exchange == "" || st.Exchange == "NSE"),
			sid != "" && strings.EqualFold(st.SID, sid):
			byCode = append(byCode, st.ID)
		case name != "" && strings.EqualFold(st.Name, name):
			byName = append(byName, st.ID)
		}
	}
	if len(byISIN) > 0 {
		return byISIN
	}
	if len(byCode) > 0 {
		// a code match brings its sibling listings along
		seen := make(map[string]bool)
		var out []string
		for _, st := range all {
			for _, id := range byCode {
				c, _ := f.stocks.Get(id)
				if st.ID == id || (c.ISIN != "" && st.ISIN == c.ISIN) {
					if !seen[st.ID] {
						seen[st.ID] = true
						out = append(out, st.ID)
					}
				}
			}
		}
		return out
	}
	return byName
}

// record is a single JSON record of a feed.
type record struct {
	fields Fields
	rec    any
}

// get evaluates a field path, returning nil when the path is empty or absent.
func (r record) get(path string) any {
	if path == "" {
		return nil
	}
	v, err := jsonpath.Get(path, r.rec)
	if err != nil {
		return nil
	}
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return nil
		}
		v = list[0]
	}
	return v
}

// str returns a field as a trimmed string, numbers included.
func (r record) str(path string) string {
	switch v := r.get(path).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return decimal.NewFromFloat(v).String()
	default:
		return ""
	}
}

func (r record) quantity(path string) (lotbook.Quantity, error) {
	s := r.str(path)
	if s == "" {
		return lotbook.Quantity{}, fmt.Errorf("missing %s", path)
	}
	return lotbook.ParseQuantity(s)
}

func (r record) action(kind lotbook.ActionKind) (a lotbook.CorporateAction, err error) {
	a.Kind = kind
	if a.ExDate, err = date.ParseAny(r.str(r.fields.ExDate), DateLayouts...); err != nil {
		return a, fmt.Errorf("invalid ex-date: %w", err)
	}
	switch kind {
	case lotbook.Split:
		if a.OldFaceValue, err = r.quantity(r.fields.OldFV); err != nil {
			return a, err
		}
		if a.NewFaceValue, err = r.quantity(r.fields.NewFV); err != nil {
			return a, err
		}
		if !a.OldFaceValue.IsPositive() || !a.NewFaceValue.IsPositive() {
			return a, fmt.Errorf("invalid face values %v/%v", a.OldFaceValue, a.NewFaceValue)
		}
	case lotbook.Bonus:
		if a.Numerator, a.Denominator, err = ParseRatio(r.str(r.fields.Ratio)); err != nil {
			return a, err
		}
	}
	return a, nil
}

// ParseRatio parses a bonus ratio "a:b", a new shares for b held.
func ParseRatio(s string) (num, den lotbook.Quantity, err error) {
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return num, den, fmt.Errorf("invalid ratio %q", s)
	}
	if num, err = lotbook.ParseQuantity(strings.TrimSpace(a)); err != nil {
		return num, den, fmt.Errorf("invalid ratio %q: %w", s, err)
	}
	if den, err = lotbook.ParseQuantity(strings.TrimSpace(b)); err != nil {
		return num, den, fmt.Errorf("invalid ratio %q: %w", s, err)
	}
	if num.IsNegative() || !den.IsPositive() {
		return num, den, fmt.Errorf("invalid ratio %q", s)
	}
	return num, den, nil
}
