package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// ParseJSON decodes JSON from the request body into the destination
func ParseJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes an error response on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// PathString extracts a required string path parameter
func PathString(r *http.Request, key string) (string, error) {
	v := mux.Vars(r)[key]
	if v == "" {
		return "", fmt.Errorf("missing path parameter: %s", key)
	}
	return v, nil
}

// QueryInt parses an optional integer query parameter, returning the
// fallback when absent
func QueryInt(r *http.Request, key string, fallback int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return fallback, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %s", key, str)
	}
	return val, nil
}
