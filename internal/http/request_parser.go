// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request
// data: JSON bodies, path ids, pagination and confirmation parameters.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"carteira/internal/core"
	"carteira/internal/services"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("request body is empty")

// DecodeJSON reads a single JSON value from the request body into v.
// Unknown fields are rejected.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON body: trailing data")
	}
	return nil
}

// ParseID reads the int64 {id} path parameter.
func ParseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// ParseFilter extracts kind, offset and limit from the query string. Bad
// numbers fall back to the defaults.
func ParseFilter(query url.Values) services.Filter {
	return services.Filter{
		Kind:   sanitizeInput(query.Get("kind")),
		Offset: intParam(query, "offset", 0),
		Limit:  intParam(query, "limit", services.DefaultPageSize),
	}
}

// Confirmation reads the confirm query parameter. Only an explicit true
// confirms.
func Confirmation(query url.Values) services.Confirmer {
	ok, _ := strconv.ParseBool(strings.TrimSpace(query.Get("confirm")))
	return services.Answer(ok)
}

// Amount accepts a JSON string or number and keeps its text, so parsing
// and its errors stay in core.ParseAmount.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		*a = ""
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
	default:
		*a = Amount(raw)
	}
	return nil
}

// TransactionRequest has the shape of a transaction. ID is accepted and
// ignored; the server assigns ids.
type TransactionRequest struct {
	ID            int64              `json:"id,omitempty"`
	Description   string             `json:"description"`
	Amount        Amount             `json:"amount"`
	Kind          core.Kind          `json:"kind"`
	PaymentMethod core.PaymentMethod `json:"paymentMethod"`
	Category      string             `json:"category"`
	Timestamp     time.Time          `json:"timestamp"`
}

func (req TransactionRequest) Draft() core.Draft {
	return core.Draft{
		Description:   sanitizeInput(req.Description),
		Amount:        string(req.Amount),
		Kind:          req.Kind,
		PaymentMethod: req.PaymentMethod,
		Category:      sanitizeInput(req.Category),
		Timestamp:     req.Timestamp,
	}
}

type AmountRequest struct {
	Amount Amount `json:"amount"`
}

type BudgetRequest struct {
	Category string `json:"category"`
	Limit    Amount `json:"limit"`
}

type CategoryRequest struct {
	Name string `json:"name"`
}

type GoalRequest struct {
	Name   string        `json:"name"`
	Target Amount        `json:"target"`
	Type   core.GoalType `json:"type"`
}

func (req GoalRequest) Draft() services.GoalDraft {
	return services.GoalDraft{Name: sanitizeInput(req.Name), Target: string(req.Target), Type: req.Type}
}

type GoalOrderRequest struct {
	IDs []string `json:"ids"`
}

type MainGoalRequest struct {
	Name   string `json:"name"`
	Target Amount `json:"target"`
}

func intParam(query url.Values, key string, def int) int {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
