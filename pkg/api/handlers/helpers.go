package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful, false if decoding fails (error response is written automatically).
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// requiredQuery returns the named query parameter, writing 400 when it is
// missing or empty.
func requiredQuery(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		BadRequest(w, "Query parameter "+strconv.Quote(name)+" is required")
		return "", false
	}
	return v, true
}

// boolQuery parses an optional boolean query parameter. Absent means false.
func boolQuery(w http.ResponseWriter, r *http.Request, name string) (bool, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		BadRequest(w, "Query parameter "+strconv.Quote(name)+" must be a boolean")
		return false, false
	}
	return b, true
}

// required writes 400 naming field when value is empty.
func required(w http.ResponseWriter, field, value string) bool {
	if value == "" {
		BadRequest(w, "Field "+strconv.Quote(field)+" is required")
		return false
	}
	return true
}
