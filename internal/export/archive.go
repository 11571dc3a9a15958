package export

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"carteira/internal/charts"
)

// WriteArchive renders the HTML and spreadsheet reports plus both charts
// into dir and returns the paths written. Charts with nothing to plot are
// skipped.
func WriteArchive(dir string, r Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	var written []string
	write := func(name string, data []byte) error {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	var buf bytes.Buffer
	if err := HTML(&buf, r); err != nil {
		return written, err
	}
	if err := write(Filename(ExtHTML, r.GeneratedAt), buf.Bytes()); err != nil {
		return written, err
	}

	buf.Reset()
	if err := Spreadsheet(&buf, r); err != nil {
		return written, err
	}
	if err := write(Filename(ExtXLS, r.GeneratedAt), buf.Bytes()); err != nil {
		return written, err
	}

	stamp := r.GeneratedAt.Format("2006-01-02")
	for name, render := range map[string]func() ([]byte, error){
		"monthly-flow-" + stamp + ".png": func() ([]byte, error) { return charts.MonthlyFlow(r.Snapshot) },
		"categories-" + stamp + ".png":   func() ([]byte, error) { return charts.Categories(r.Snapshot) },
	} {
		png, err := render()
		if errors.Is(err, charts.ErrNoData) {
			continue
		}
		if err != nil {
			return written, err
		}
		if err := write(name, png); err != nil {
			return written, err
		}
	}
	return written, nil
}
