package httputil

import (
	"fmt"
	"net/http"
	"strconv"
)

// queryParam parses key with parse, or returns fallback when the parameter
// is absent. A present but unparsable value is an error naming the key.
func queryParam[T any](r *http.Request, key string, fallback T, parse func(string) (T, error)) (T, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := parse(raw)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return v, nil
}

// ParseQueryInt reads an integer query parameter
func ParseQueryInt(r *http.Request, key string, fallback int) (int, error) {
	return queryParam(r, key, fallback, strconv.Atoi)
}

// ParseQueryBool reads a boolean query parameter
func ParseQueryBool(r *http.Request, key string, fallback bool) (bool, error) {
	return queryParam(r, key, fallback, strconv.ParseBool)
}

// ParseQueryString reads a string query parameter
func ParseQueryString(r *http.Request, key, fallback string) string {
	v, _ := queryParam(r, key, fallback, func(s string) (string, error) { return s, nil })
	return v
}
