package validators

import (
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/angelmondragon/repricer-backend/pkg/errors"
)

const maxIdentifierLength = 128

func fieldError(key, message string, extra ...any) error {
	details := map[string]any{"field": key}
	for i := 0; i+1 < len(extra); i += 2 {
		if name, ok := extra[i].(string); ok {
			details[name] = extra[i+1]
		}
	}
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(details)
}

// queryValue reads key from the query string; ok is false when it is absent or blank.
func queryValue[T any](r *http.Request, key, expect string, parse func(string) (T, error)) (value T, ok bool, err error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return value, false, nil
	}
	value, err = parse(raw)
	if err != nil {
		return value, false, fieldError(key, "query parameter must be "+expect)
	}
	return value, true, nil
}

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	value, ok, err := queryValue(r, key, "numeric", strconv.Atoi)
	switch {
	case err != nil:
		return 0, err
	case !ok:
		return defaultVal, nil
	case value < min || value > max:
		return 0, fieldError(key, "query parameter out of range", "min", min, "max", max)
	}
	return value, nil
}

func ParseQueryBool(r *http.Request, key string, defaultVal bool) (bool, error) {
	value, ok, err := queryValue(r, key, "a boolean", strconv.ParseBool)
	switch {
	case err != nil:
		return false, err
	case !ok:
		return defaultVal, nil
	}
	return value, nil
}

// ParseQueryTime reads an RFC 3339 timestamp as UTC; a missing value returns nil.
func ParseQueryTime(r *http.Request, key string) (*time.Time, error) {
	value, ok, err := queryValue(r, key, "an RFC 3339 timestamp", func(raw string) (time.Time, error) {
		return time.Parse(time.RFC3339, raw)
	})
	if err != nil || !ok {
		return nil, err
	}
	value = value.UTC()
	return &value, nil
}

// PathIdentifier returns a required, sanitized URL parameter.
func PathIdentifier(r *http.Request, key string) (string, error) {
	value := SanitizeString(chi.URLParam(r, key), 0)
	if value == "" {
		return "", fieldError(key, "path parameter required")
	}
	if utf8.RuneCountInString(value) > maxIdentifierLength {
		return "", fieldError(key, "path parameter too long", "max", maxIdentifierLength)
	}
	return value, nil
}
