package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kraken-ng/kraken/internal/app/krakenerr"
)

// apiError is the wire shape of every error response: a stable numeric
// code plus a human-readable message.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Stable numeric codes. The numbers are part of the API contract; append
// only, never renumber.
const (
	codeUnknown           = 1000
	codeInvalidJSON       = 1001
	codeInvalidUUID       = 1002
	codeMissingField      = 1003
	codeInvalidFilter     = 1004
	codeInvalidPort       = 1005
	codeUnauthenticated   = 1100
	codeMissingPrivileges = 1101
	codeAlreadyExists     = 1200
	codeNotFound          = 1300
	codeUpstream          = 1400
	codeStorage           = 1500
	codeInternal          = 1501
	codeIntegration       = 1502
)

// numericCode maps a krakenerr string code (or, failing that, its Kind)
// to the stable numeric API code.
func numericCode(e *krakenerr.Error) int {
	switch e.Code {
	case krakenerr.CodeInvalidUUID:
		return codeInvalidUUID
	case krakenerr.CodeMissingField:
		return codeMissingField
	case "InvalidFilter":
		return codeInvalidFilter
	case "InvalidPort":
		return codeInvalidPort
	case krakenerr.CodeAlreadyExists:
		return codeAlreadyExists
	case krakenerr.CodeNotMember:
		return codeMissingPrivileges
	}
	switch e.Kind {
	case krakenerr.ClientInput:
		return codeInvalidJSON
	case krakenerr.Authorization:
		return codeUnauthenticated
	case krakenerr.Conflict:
		return codeAlreadyExists
	case krakenerr.NotFound:
		return codeNotFound
	case krakenerr.UpstreamMalformed:
		return codeUpstream
	case krakenerr.Storage:
		return codeStorage
	case krakenerr.Integration:
		return codeIntegration
	case krakenerr.Internal:
		return codeInternal
	}
	return codeUnknown
}

func httpStatus(kind krakenerr.Kind) int {
	switch kind {
	case krakenerr.ClientInput:
		return http.StatusBadRequest
	case krakenerr.Authorization:
		return http.StatusUnauthorized
	case krakenerr.Conflict:
		return http.StatusConflict
	case krakenerr.NotFound:
		return http.StatusNotFound
	case krakenerr.UpstreamMalformed, krakenerr.Storage, krakenerr.Internal:
		return http.StatusInternalServerError
	case krakenerr.Integration:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError maps any error to the API error contract. Unclassified
// errors surface as a generic 500 without leaking internals.
func writeError(w http.ResponseWriter, err error) {
	var ke *krakenerr.Error
	if errors.As(err, &ke) {
		status := httpStatus(ke.Kind)
		body := apiError{Code: numericCode(ke), Message: ke.Message}
		if status >= 500 {
			body.Message = "internal server error"
		}
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusInternalServerError, apiError{Code: codeInternal, Message: "internal server error"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
