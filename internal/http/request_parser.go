// This file implements utilities for parsing and validating HTTP request data.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/storage"

	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters. A missing
// value is left at zero so the period check rejects it; a present value must
// be an integer. Range checks belong to the summary itself.
func ParseMonthParams(query url.Values) (MonthParams, error) {
	var (
		params MonthParams
		err    error
	)
	if params.Year, err = intParam(query, "year"); err != nil {
		return MonthParams{}, err
	}
	if params.Month, err = intParam(query, "month"); err != nil {
		return MonthParams{}, err
	}
	return params, nil
}

func intParam(query url.Values, key string) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, core.NewValidationError(key, "%s must be an integer.", key)
	}
	return n, nil
}

// ParseTransactionFilter reads accountId, categoryId, from and to. Each is
// optional; a present but malformed value is a validation error.
func ParseTransactionFilter(query url.Values) (storage.TransactionFilter, error) {
	var f storage.TransactionFilter

	for key, dst := range map[string]**uuid.UUID{
		"accountId":  &f.AccountID,
		"categoryId": &f.CategoryID,
	} {
		v := strings.TrimSpace(query.Get(key))
		if v == "" {
			continue
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return storage.TransactionFilter{}, core.NewValidationError(key, "%s must be a valid id.", key)
		}
		*dst = &id
	}

	for key, dst := range map[string]**core.Date{
		"from": &f.From,
		"to":   &f.To,
	} {
		v := strings.TrimSpace(query.Get(key))
		if v == "" {
			continue
		}
		d, err := core.ParseDate(v)
		if err != nil {
			return storage.TransactionFilter{}, core.NewValidationError(key, "%s must be a date (YYYY-MM-DD).", key)
		}
		*dst = &d
	}

	return f, nil
}

// pathID parses the {id} wildcard. A malformed id cannot name an existing
// entity, so callers answer it like an unknown one.
func pathID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// decodeJSON reads one JSON value from the body into v. Unknown fields are
// ignored. Failures come back as validation errors naming the bad field when
// the decoder reports one.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	err := dec.Decode(v)
	if err == nil {
		if dec.More() {
			return core.NewValidationError("", "Request body must contain a single JSON object.")
		}
		return nil
	}

	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		maxErr    *http.MaxBytesError
	)
	switch {
	case errors.Is(err, io.EOF):
		return core.NewValidationError("", "Request body is required.")
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return core.NewValidationError("", "Request body is not valid JSON.")
	case errors.As(err, &typeErr):
		return core.NewValidationError(typeErr.Field, "%s has the wrong type.", typeErr.Field)
	case errors.As(err, &maxErr):
		return core.NewValidationError("", "Request body is too large.")
	case core.IsValidation(err):
		return err
	case errors.Is(err, core.ErrInvalidDate):
		return core.NewValidationError("date", "date must be a date (YYYY-MM-DD).")
	case errors.Is(err, core.ErrInvalidAmount):
		return core.NewValidationError("", "Amounts must be decimal numbers.")
	default:
		return core.NewValidationError("", "Request body is invalid: %v.", err)
	}
}
