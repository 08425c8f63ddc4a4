// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// query parameters shared by the view endpoints and JSON bodies checked with
// go-playground/validator before they reach the mutation gateway.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"yeardash/internal/aggregate"
	"yeardash/internal/core"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

var (
	errInvalidMonth  = errors.New("month must be YYYY-MM")
	errInvalidYear   = errors.New("year must be a number between 1900 and 9999")
	errInvalidFilter = errors.New("type must be one of all, income, expense")
	errInvalidRecap  = errors.New("type must be one of All, Daily, Weekly, Monthly, Yearly")
)

// ParseMonthParam reads ?month=YYYY-MM, defaulting to the month of now.
func ParseMonthParam(query url.Values, now time.Time) (aggregate.Period, error) {
	v := strings.TrimSpace(query.Get("month"))
	if v == "" {
		return aggregate.MonthOf(now), nil
	}
	p, err := aggregate.ParsePeriod(v, now.Location())
	if err != nil {
		return aggregate.Period{}, errInvalidMonth
	}
	return p, nil
}

// ParseYearParam reads ?year=, defaulting to the year of now.
func ParseYearParam(query url.Values, now time.Time) (int, error) {
	v := strings.TrimSpace(query.Get("year"))
	if v == "" {
		return now.Year(), nil
	}
	y, err := strconv.Atoi(v)
	if err != nil || y < 1900 || y > 9999 {
		return 0, errInvalidYear
	}
	return y, nil
}

// ParseTypeFilter reads the transaction ?type= filter.
func ParseTypeFilter(query url.Values) (aggregate.TypeFilter, error) {
	f := aggregate.TypeFilter(strings.ToLower(strings.TrimSpace(query.Get("type"))))
	if !f.Valid() {
		return "", errInvalidFilter
	}
	if f == "" {
		f = aggregate.FilterAll
	}
	return f, nil
}

// ParseRecapType reads the recap ?type= filter.
func ParseRecapType(query url.Values) (core.RecapType, error) {
	t := core.RecapType(strings.TrimSpace(query.Get("type")))
	switch {
	case t == "" || t == aggregate.AllRecaps:
		return aggregate.AllRecaps, nil
	case t.Valid():
		return t, nil
	}
	return "", errInvalidRecap
}

// DecodeJSON reads a single JSON object into dst, rejecting unknown fields.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// RequestValidator checks request DTOs and reports problems by JSON field name.
type RequestValidator struct {
	v *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &RequestValidator{v: v}
}

// Validate returns nil when dst is valid, otherwise one message per field.
func (rv *RequestValidator) Validate(dst any) map[string]string {
	err := rv.v.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"body": err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return fields
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "datetime":
		return "must be a date formatted as YYYY-MM-DD"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	}
	return "is invalid"
}
