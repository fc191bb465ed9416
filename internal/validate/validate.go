// Package validate collects field-level input problems so callers can report
// every offending field at once instead of failing on the first.
package validate

import (
	"errors"
	"net/mail"
	"net/url"
	"strings"
)

// ErrInvalid is matched by every *Errors value.
var ErrInvalid = errors.New("validation failed")

// FieldError names one offending input field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Errors is a list of field problems. The zero value is ready to use.
type Errors struct {
	Fields []FieldError
}

func (e *Errors) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrInvalid.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return ErrInvalid.Error() + ": " + strings.Join(parts, "; ")
}

// Is lets errors.Is match ErrInvalid.
func (e *Errors) Is(target error) bool {
	return target == ErrInvalid
}

// Add records a problem for field.
func (e *Errors) Add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

// Required records field when value is blank.
func (e *Errors) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		e.Add(field, "is required")
	}
}

// Email records field when value is blank or not a bare address.
func (e *Errors) Email(field, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		e.Add(field, "is required")
		return
	}
	if !IsEmail(value) {
		e.Add(field, "must be a valid email address")
	}
}

// URL records field when a non-empty value is not an absolute http(s) URL.
func (e *Errors) URL(field, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		e.Add(field, "must be an absolute http(s) URL")
	}
}

// Err returns nil when nothing was recorded.
func (e *Errors) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// IsEmail reports whether value is a single bare address without display name.
func IsEmail(value string) bool {
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return false
	}
	at := strings.LastIndexByte(value, '@')
	return at > 0 && strings.Contains(value[at+1:], ".")
}

// NormalizeEmail trims and lower-cases an address for storage and lookup.
func NormalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
