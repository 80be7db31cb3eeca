package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger(r.Context()).Error("failed to encode response", "error", err)
	}
}

func Error(w http.ResponseWriter, r *http.Request, status int, code, msg string, details map[string]any) {
	JSON(w, r, status, ErrorResponse{Error: msg, Code: code, Details: details})
}

// Decode reads a JSON body into v and validates it. It writes the 400
// response itself and reports whether the handler may continue.
func Decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		Error(w, r, http.StatusBadRequest, "invalid_body", "invalid request body: "+err.Error(), nil)
		return false
	}

	if details := Validate(v); details != nil {
		Error(w, r, http.StatusBadRequest, "invalid_request", "request validation failed", details)
		return false
	}

	return true
}
