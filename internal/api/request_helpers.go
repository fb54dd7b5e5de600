package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// decodeAndValidate reads a JSON request body into dst and runs the
// struct-tag validation rules.
func decodeAndValidate(r *http.Request, validate *validator.Validate, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("request validation failed: %w", err)
	}
	return nil
}

// parseInt64List parses a comma-separated query parameter into int64s.
// An absent or empty parameter yields nil.
func parseInt64List(query url.Values, key string) ([]int64, error) {
	raw := query.Get(key)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	values := make([]int64, 0, len(parts))
	for _, part := range parts {
		value, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q", key, part)
		}
		values = append(values, value)
	}
	return values, nil
}

// parsePagination reads offset/limit with defaults and a limit cap.
func parsePagination(query url.Values) (offset, limit int, err error) {
	offset = 0
	if raw := query.Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset %q", raw)
		}
	}

	limit = defaultPageLimit
	if raw := query.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return 0, 0, fmt.Errorf("invalid limit %q", raw)
		}
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return offset, limit, nil
}
