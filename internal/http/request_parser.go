// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request
// data: month keys from paths and queries, amounts, dates, and input
// sanitization shared by all handlers.

package http

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"bollette/internal/core"

	"github.com/shopspring/decimal"
)

const dueDateLayout = "2006-01-02"

// MonthParam resolves the month key for a request, preferring the "month"
// path value, then the query string, then the current month.
func MonthParam(r *http.Request) (core.MonthKey, error) {
	v := strings.TrimSpace(r.PathValue("month"))
	if v == "" {
		v = strings.TrimSpace(r.URL.Query().Get("month"))
	}
	if v == "" {
		return core.ToMonthKey(time.Now()), nil
	}
	key := core.MonthKey(v)
	if _, _, err := core.ParseMonthKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// ParseAmountField parses a money form field, accepting both comma and dot
// decimal separators.
func ParseAmountField(form url.Values, key string) (decimal.Decimal, error) {
	return core.ParseAmount(form.Get(key))
}

// ParseDateField parses a YYYY-MM-DD form field in local time.
func ParseDateField(form url.Values, key string) (time.Time, error) {
	v := strings.TrimSpace(form.Get(key))
	t, err := time.ParseInLocation(dueDateLayout, v, time.Local)
	if err != nil {
		return time.Time{}, core.ErrInvalidDate
	}
	return t, nil
}

// sanitizeInput removes control characters (except tab, newline, carriage
// return) and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// formatAmount renders a decimal as a euro string with a comma separator.
func formatAmount(d decimal.Decimal) string {
	s := d.StringFixed(2)
	s = strings.Replace(s, ".", ",", 1)
	if strings.HasPrefix(s, "-") {
		return "-€" + s[1:]
	}
	return "€" + s
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// RequireDeleteOrPOST is a convenience function for DELETE/POST handlers.
func RequireDeleteOrPOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodDelete, http.MethodPost)
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Formato richiesta non valido")
	}
	return nil
}
