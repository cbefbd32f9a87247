// Package renderer renders lotbook reports as markdown.
package renderer

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
	"time"

	"github.com/etnz/lotbook/date"
)

//go:embed templates/*.md
var templates embed.FS

var funcs = template.FuncMap{
	// day formats the calendar day of a timestamp.
	"day": func(t time.Time) string { return date.Of(t).String() },
	// cell escapes a value for a markdown table cell.
	"cell": func(v any) string {
		s := fmt.Sprint(v)
		s = strings.ReplaceAll(s, "|", `\|`)
		return strings.ReplaceAll(s, "\n", " ")
	},
}

// renderTemplate renders a main template that depends on partials, given
// as alias to file name. An empty file name defines an empty partial.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any) string {
	mainContent, err := fs.ReadFile(templates, "templates/"+mainFile)
	if err != nil {
		return fmt.Sprintf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Funcs(funcs).Parse(string(mainContent))
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		var content []byte
		if file != "" {
			content, err = fs.ReadFile(templates, "templates/"+file)
			if err != nil {
				return fmt.Sprintf("error reading partial template %q: %v", file, err)
			}
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Sprintf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, templateName, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", templateName, err)
	}
	return b.String()
}

// RenderHoldings renders the positions of a portfolio.
func RenderHoldings(h *Holdings) string {
	partials := map[string]string{
		"holdings_positions": "holdings_positions.md",
		"holdings_unmatched": "",
	}
	if len(h.Unmatched) > 0 {
		partials["holdings_unmatched"] = "holdings_unmatched.md"
	}
	return renderTemplate("holdings", "holdings.md", partials, h)
}

// RenderOverview renders the net worth of a user, one section per currency.
func RenderOverview(o *Overview) string {
	partials := map[string]string{
		"overview_accounts": "overview_accounts.md",
	}
	return renderTemplate("overview", "overview.md", partials, o)
}

// RenderAccounts renders a list of accounts with their balances.
func RenderAccounts(a *Accounts) string {
	return renderTemplate("accounts", "accounts.md", nil, a)
}

// RenderTransactions renders ledger transactions.
func RenderTransactions(l *Ledger) string {
	return renderTemplate("ledger", "ledger.md", nil, l)
}

// RenderImport renders the outcome of an import.
func RenderImport(r *Import) string {
	partials := map[string]string{"import_failures": ""}
	if len(r.Failures) > 0 {
		partials["import_failures"] = "import_failures.md"
	}
	return renderTemplate("import", "import.md", partials, r)
}

// RenderReconciliation renders reconciliation trades.
func RenderReconciliation(r *Reconciliation) string {
	return renderTemplate("reconciliation", "reconciliation.md", nil, r)
}
