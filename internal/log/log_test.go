package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{Level: slog.LevelDebug, Format: "json", Component: component, Output: buf})
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &rec))
	return rec
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, ComponentLedger)

	l.Info("hello", FieldCount, 3)
	rec := lastRecord(t, &buf)
	assert.Equal(t, ComponentLedger, rec[FieldComponent])
	assert.Equal(t, float64(3), rec[FieldCount])

	l.WithComponent(ComponentHTTP).Warn("switched")
	rec = lastRecord(t, &buf)
	assert.Equal(t, ComponentHTTP, rec[FieldComponent])
	assert.Equal(t, "WARN", rec["level"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestMiddlewareAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := jsonLogger(&buf, ComponentHTTP)

	h := Middleware(base, func(context.Context) string { return "req-1" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "inside")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	rec := lastRecord(t, &buf)
	assert.Equal(t, "req-1", rec[FieldRequestID])
}

func TestFromContextDefault(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	assert.Equal(t, ComponentApp, l.Component())
}

func TestStructuredLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(jsonLogger(&buf, ComponentHTTP))
	r := httptest.NewRequest(http.MethodPost, "/api/transactions?x=1", nil)

	sl.LogHTTPEnd(context.Background(), r, "id", http.StatusUnprocessableEntity, 5, "127.0.0.1")
	rec := lastRecord(t, &buf)
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, false, rec[FieldSuccess])

	sl.LogHTTPEnd(context.Background(), r, "id", http.StatusInternalServerError, 5, "127.0.0.1")
	assert.Equal(t, "ERROR", lastRecord(t, &buf)["level"])

	sl.LogTransaction(context.Background(), OpCreate, 7, "expense", "pix", "Food", 1250)
	rec = lastRecord(t, &buf)
	assert.Equal(t, "Transaction created", rec["msg"])
	assert.Equal(t, float64(1250), rec[FieldAmountCents])

	sl.LogError(context.Background(), "boom", errors.New("disk full"), OpSync, nil)
	rec = lastRecord(t, &buf)
	assert.Equal(t, "disk full", rec[FieldError])
	assert.Equal(t, OpSync, rec[FieldOperation])
}
