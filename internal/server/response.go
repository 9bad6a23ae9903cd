package server

import (
	"encoding/json"
	"net/http"

	"github.com/oswaldb22/apple-intelligence-js-sdk/pkg/openai"
)

type respError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type response struct {
	Ok    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Error *respError `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// RespondOK writes the admin success envelope.
func RespondOK(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, response{Ok: true, Data: data})
}

// RespondError writes the admin error envelope.
func RespondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, response{Ok: false, Error: &respError{Code: code, Message: message}})
}

// respondAPIError writes the OpenAI-style error body used on /v1 routes.
func respondAPIError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, openai.ErrorResponse{Error: openai.ErrorBody{Message: message, Type: errType}})
}
