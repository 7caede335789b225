package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"finey/internal/core"
	"finey/internal/schema"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 64 << 10

// RequestBodyParser reads a JSON object body into schema.Values: string,
// number and boolean members become one-element lists, arrays keep their
// scalar elements and null members are dropped.
type RequestBodyParser struct {
	body   []byte
	values schema.Values
	parsed bool
	err    error
}

// NewRequestBodyParser reads the body once, bounded by maxBodyBytes.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse decodes the body. Malformed JSON is reported as a ValidationError.
func (p *RequestBodyParser) Parse() (schema.Values, error) {
	if p.parsed {
		return p.values, p.err
	}
	p.parsed = true

	if p.err != nil {
		return nil, p.err
	}

	var raw map[string]any
	if len(strings.TrimSpace(string(p.body))) == 0 {
		p.err = core.NewValidationError("body", "a JSON object is required")
		return nil, p.err
	}
	if err := json.Unmarshal(p.body, &raw); err != nil {
		p.err = core.NewValidationError("body", "must be a JSON object")
		return nil, p.err
	}

	p.values = make(schema.Values, len(raw))
	for key, val := range raw {
		switch v := val.(type) {
		case nil:
		case []any:
			list := make([]string, 0, len(v))
			for _, elem := range v {
				s, ok := stringValue(elem)
				if !ok {
					p.err = core.NewValidationError(key, "must contain only scalar values")
					return nil, p.err
				}
				list = append(list, sanitizeInput(s))
			}
			p.values.Set(key, list...)
		default:
			s, ok := stringValue(v)
			if !ok {
				p.err = core.NewValidationError(key, "must be a scalar value or a list")
				return nil, p.err
			}
			p.values.Set(key, sanitizeInput(s))
		}
	}
	return p.values, nil
}

// stringValue converts a decoded JSON scalar to string.
func stringValue(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	}
	return "", false
}

// sanitizeInput drops control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// RequireMethod returns a 405 response when r.Method is not allowed.
func RequireMethod(r *http.Request, methods ...string) *ResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// AnalysisInput is an opened analysis request body.
type AnalysisInput struct {
	Accounts core.AccountSelector
	Range    core.RangeDescriptor
}

// parseAnalysisRequest validates the body against schema.AnalysisRequest,
// opens the sealed account ids and builds the range descriptor.
func parseAnalysisRequest(w http.ResponseWriter, r *http.Request, validator *schema.Validator) (AnalysisInput, error) {
	values, err := NewRequestBodyParser(w, r).Parse()
	if err != nil {
		return AnalysisInput{}, err
	}

	opened, err := validator.Open(r.Context(), schema.AnalysisRequest, values)
	if err != nil {
		return AnalysisInput{}, err
	}

	var desc core.RangeDescriptor
	dates := []struct {
		field string
		dst   *core.Date
	}{
		{schema.FieldStartDate, &desc.Start},
		{schema.FieldEndDate, &desc.End},
		{schema.FieldReferenceDate, &desc.Reference},
	}
	for _, d := range dates {
		v := opened.First(d.field)
		if v == "" {
			continue
		}
		// Rules already checked the format; a failure here is a bug.
		if *d.dst, err = core.ParseDate(v); err != nil {
			return AnalysisInput{}, fmt.Errorf("parse %s: %w", d.field, err)
		}
	}

	return AnalysisInput{
		Accounts: core.NewAccountSelector(opened[schema.FieldAccountIDs]),
		Range:    desc,
	}, nil
}
