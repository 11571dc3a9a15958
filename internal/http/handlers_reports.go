package http

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"carteira/internal/charts"
	"carteira/internal/export"
	"carteira/internal/metrics"
	"carteira/internal/palette"
)

type metricsResponse struct {
	metrics.Snapshot
	HealthLabel     string                   `json:"healthLabel"`
	HealthMessage   string                   `json:"healthMessage"`
	ExpensesByValue []metrics.CategoryAmount `json:"expensesByValue"`
	Colors          map[string]string        `json:"colors"`
}

func newMetricsResponse(snap metrics.Snapshot) metricsResponse {
	byValue := snap.ExpensesByValue()
	names := make([]string, 0, len(byValue)+snap.IncomeByCategory.Len())
	for _, e := range byValue {
		names = append(names, e.Name)
	}
	names = append(names, snap.IncomeByCategory.Keys()...)
	return metricsResponse{
		Snapshot:        snap,
		HealthLabel:     snap.Health.Label(),
		HealthMessage:   snap.Health.Message(),
		ExpensesByValue: byValue,
		Colors:          palette.Colors.Map(names),
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ledger.Snapshot(r.Context(), s.now())
	if err != nil {
		s.fail(w, r, "metrics", err)
		return
	}
	NewResponse().JSON(newMetricsResponse(snap)).Write(w)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ledger.Insights(r.Context(), s.now())
	if err != nil {
		s.fail(w, r, "insights", err)
		return
	}
	NewResponse().JSON(stats).Write(w)
}

func (s *Server) handleMonthlyFlowChart(w http.ResponseWriter, r *http.Request) {
	s.writeChart(w, r, "monthly_flow_chart", charts.MonthlyFlow)
}

func (s *Server) handleCategoriesChart(w http.ResponseWriter, r *http.Request) {
	s.writeChart(w, r, "categories_chart", charts.Categories)
}

func (s *Server) writeChart(w http.ResponseWriter, r *http.Request, op string, draw func(metrics.Snapshot) ([]byte, error)) {
	snap, err := s.ledger.Snapshot(r.Context(), s.now())
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	png, err := draw(snap)
	if errors.Is(err, charts.ErrNoData) {
		NotFoundError(err.Error()).Write(w)
		return
	}
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	w.Header().Set("Content-Type", charts.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func (s *Server) handleExportHTML(w http.ResponseWriter, r *http.Request) {
	s.writeExport(w, r, export.ExtHTML, export.ContentTypeHTML, export.HTML)
}

func (s *Server) handleExportSpreadsheet(w http.ResponseWriter, r *http.Request) {
	s.writeExport(w, r, export.ExtXLS, export.ContentTypeXLS, export.Spreadsheet)
}

func (s *Server) writeExport(w http.ResponseWriter, r *http.Request, ext, contentType string, render func(io.Writer, export.Report) error) {
	o, err := s.ledger.Overview(r.Context(), s.now())
	if err != nil {
		s.fail(w, r, "export_"+ext, err)
		return
	}
	var buf bytes.Buffer
	if err := render(&buf, export.Report{
		Snapshot:     o.Snapshot,
		Transactions: o.Transactions,
		GeneratedAt:  o.GeneratedAt,
	}); err != nil {
		s.fail(w, r, "export_"+ext, err)
		return
	}
	writeAttachment(w, contentType, export.Filename(ext, o.GeneratedAt), buf.Bytes())
}
