package validation

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Error is a rejected input. Handlers map it to 400.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Errorf builds a validation error for field.
func Errorf(field, format string, args ...interface{}) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// emailRe: /^[^\s@]+@[^\s@]+\.[^\s@]+$/
var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// slugRe: lowercase alphanumerics separated by single hyphens.
var slugRe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

func IsValidSlug(slug string) bool {
	return slugRe.MatchString(slug)
}

// ParseNonNegativeFloat parses a query/body value that must be a finite number >= 0.
func ParseNonNegativeFloat(field, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, Errorf(field, "must be a number")
	}
	if v < 0 {
		return 0, Errorf(field, "must not be negative")
	}
	return v, nil
}

// ParseNonNegativeInt parses a value that must be a whole number >= 0.
func ParseNonNegativeInt(field, raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, Errorf(field, "must be a whole number")
	}
	if v < 0 {
		return 0, Errorf(field, "must not be negative")
	}
	return v, nil
}
