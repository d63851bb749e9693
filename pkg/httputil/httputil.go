// Package httputil centralizes JSON response writing and domain error
// translation so every handler produces the same envelopes.
package httputil

import (
	"encoding/json"
	"net/http"

	pkgerrors "trustgate/pkg/errors"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the JSON error envelope. Internal
// errors deliberately omit the description so store and facilitator detail
// never reaches the caller.
func WriteError(w http.ResponseWriter, err error) {
	code := pkgerrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	if code == pkgerrors.CodeInvalidRequest || code == pkgerrors.CodeNotFound {
		body["error_description"] = pkgerrors.MessageOf(err)
	}
	WriteJSON(w, pkgerrors.ToHTTPStatus(code), body)
}

// Decode parses a JSON request body into dst, classifying malformed bodies as
// invalid_request.
func Decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInvalidRequest, "malformed JSON body", err)
	}
	return nil
}
