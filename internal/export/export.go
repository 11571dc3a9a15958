// Package export renders the financial report as a standalone HTML page or
// as spreadsheet-flavored HTML that Excel opens with styles.
package export

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"carteira/internal/core"
	"carteira/internal/metrics"
	"carteira/internal/palette"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"currency": Currency,
	"signed":   Signed,
	"date":     func(t time.Time) string { return t.Format("02/01/2006 15:04") },
}).ParseFS(templatesFS, "templates/*.html"))

const (
	ExtHTML = "html"
	ExtXLS  = "xls"

	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeXLS  = "application/vnd.ms-excel; charset=utf-8"
)

// Report is everything the templates print. Values are taken from the
// snapshot as they are.
type Report struct {
	Snapshot     metrics.Snapshot
	Transactions []core.Transaction
	GeneratedAt  time.Time
}

// CategoryRow is one line of the expense breakdown.
type CategoryRow struct {
	Name   string
	Amount core.Money
	Share  string
	Color  string
}

type view struct {
	Report
	HealthLabel   string
	HealthMessage string
	Categories    []CategoryRow
	CategoryTotal core.Money
}

func (r Report) view() view {
	s := r.Snapshot
	v := view{
		Report:        r,
		HealthLabel:   s.Health.Label(),
		HealthMessage: s.Health.Message(),
		CategoryTotal: s.ExpenseByCategory.Sum(),
	}
	for _, e := range s.ExpensesByValue() {
		v.Categories = append(v.Categories, CategoryRow{
			Name:   e.Name,
			Amount: e.Amount,
			Share:  share(e.Amount, v.CategoryTotal),
			Color:  "#" + palette.Hex(e.Name),
		})
	}
	return v
}

// HTML writes the self-contained report page.
func HTML(w io.Writer, r Report) error {
	if err := templates.ExecuteTemplate(w, "report.html", r.view()); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	return nil
}

// Spreadsheet writes the report as .xls-flavored HTML.
func Spreadsheet(w io.Writer, r Report) error {
	if err := templates.ExecuteTemplate(w, "report_xls.html", r.view()); err != nil {
		return fmt.Errorf("render spreadsheet report: %w", err)
	}
	return nil
}

// Filename returns the suggested download name, e.g.
// relatorio-financeiro-2025-03-15.xls.
func Filename(ext string, at time.Time) string {
	return fmt.Sprintf("relatorio-financeiro-%s.%s", at.Format("2006-01-02"), ext)
}

// Currency formats m as Brazilian reais: R$ 1.234,56.
func Currency(m core.Money) string {
	neg := m.IsNegative()
	if neg {
		m.Cents = -m.Cents
	}
	fixed := m.Decimal().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := "R$ " + b.String() + "," + frac
	if neg {
		return "-" + out
	}
	return out
}

// Signed prefixes income with + and expenses with a minus sign.
func Signed(t core.Transaction) string {
	if t.Kind == core.Income {
		return "+ " + Currency(t.Amount)
	}
	return "− " + Currency(t.Amount)
}

func share(part, total core.Money) string {
	if total.Cents <= 0 {
		return "0.0%"
	}
	return part.Decimal().Div(total.Decimal()).Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
}
