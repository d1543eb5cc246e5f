// Package api implements the HTTP surface of the Lexia service: credential
// management, job submission and polling, synchronous passthrough endpoints,
// and the middleware stack (auth, rate limiting, CORS) in front of them.
package api

import (
	"encoding/json"
	"net/http"
)

// Error types, mirroring the public error contract.
const (
	errTypeInvalidRequest = "invalid_request_error"
	errTypeAuth           = "authentication_error"
	errTypeRateLimit      = "rate_limit_error"
	errTypeServer         = "server_error"
	errTypeAPI            = "api_error"
)

// apiError is the error object nested in every failure body.
type apiError struct {
	Message string  `json:"message"`
	Type    string  `json:"type"`
	Param   *string `json:"param"`
	Code    *string `json:"code"`
}

// errorBody is the envelope every failure response uses.
type errorBody struct {
	Error apiError `json:"error"`
}

// writeJSON encodes v with the given status. Encoding failures are swallowed:
// the status line is already on the wire.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError emits the standard error envelope. param and code may be empty,
// in which case they serialize as null.
func writeError(w http.ResponseWriter, status int, typ, code, param, message string) {
	e := apiError{Message: message, Type: typ}
	if param != "" {
		e.Param = &param
	}
	if code != "" {
		e.Code = &code
	}
	writeJSON(w, status, errorBody{Error: e})
}

// badRequest is a validation failure tied to a specific parameter.
func badRequest(w http.ResponseWriter, code, param, message string) {
	writeError(w, http.StatusBadRequest, errTypeInvalidRequest, code, param, message)
}

// notFound hides whether the resource is missing or owned by someone else:
// both cases produce this exact body.
func notFound(w http.ResponseWriter, code, message string) {
	writeError(w, http.StatusNotFound, errTypeInvalidRequest, code, "", message)
}

// serverError reports a failure the caller cannot fix. The message is kept
// generic; details go to the log.
func serverError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, errTypeServer, "internal_error", "",
		"an internal error occurred")
}
