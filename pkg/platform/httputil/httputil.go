// Package httputil holds the JSON response and request helpers shared by
// every HTTP handler.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "screening/pkg/domain-errors"
)

// maxBodyBytes caps request bodies read by DecodeAndPrepare.
const maxBodyBytes = 1 << 20

// Validatable is implemented by request types that normalise and check
// themselves after decoding.
type Validatable interface {
	Validate() error
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v with the given status. Encoding failures after the
// header is sent cannot be reported to the client and are dropped.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to an HTTP status and JSON envelope.
// Errors without a domain code are reported as internal errors.
func WriteError(w http.ResponseWriter, err error) {
	code, ok := dErrors.CodeOf(err)
	if !ok {
		code = dErrors.CodeInternal
	}
	resp := ErrorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		resp.ErrorDescription = dErrors.MessageOf(err)
	}
	WriteJSON(w, StatusFor(code), resp)
}

// StatusFor returns the HTTP status for a domain error code.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodeBadGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// DecodeAndPrepare decodes the JSON body into T and runs its Validate method.
// On failure it writes the error response and returns false.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		logger.WarnContext(ctx, "failed to decode request",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, msg))
		return nil, false
	}

	if v, ok := any(&req).(Validatable); ok {
		if err := v.Validate(); err != nil {
			logger.WarnContext(ctx, "invalid request",
				"request_id", requestID,
				"error", err,
			)
			WriteError(w, err)
			return nil, false
		}
	}
	return &req, true
}
