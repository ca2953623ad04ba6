package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. The status code is chosen from the error taxonomy by statusFor
//  4. The message is mapped via core.MapError to a user-friendly message
//  5. Technical error + context is logged with request ID for correlation
//  6. A JSON ErrorResponse is written

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/tabjson/internal/core"
	"github.com/JonMunkholm/tabjson/internal/logging"
	"github.com/JonMunkholm/tabjson/internal/projection"
	"github.com/JonMunkholm/tabjson/internal/sink"
	"github.com/JonMunkholm/tabjson/internal/table"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action)
// fields. Detail carries the domain error text (file name, attempted kind,
// storage target) and is omitted for unexpected errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Detail  string `json:"detail,omitempty"`
}

// errorStatus pairs a sentinel with its HTTP status.
type errorStatus struct {
	target error
	status int
}

// errorStatuses is checked with errors.Is in order; keep it aligned with
// the order of core.MapError.
var errorStatuses = []errorStatus{
	{core.ErrTooManyUploads, http.StatusServiceUnavailable},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
	{context.Canceled, http.StatusRequestTimeout},
	{core.ErrNoFile, http.StatusBadRequest},
	{core.ErrEmptyFile, http.StatusBadRequest},
	{core.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
	{core.ErrInvalidRequest, http.StatusBadRequest},
	{table.ErrUnsupportedFormat, http.StatusUnsupportedMediaType},
	{projection.ErrUnknownPolicy, http.StatusBadRequest},
	{table.ErrParseFailure, http.StatusUnprocessableEntity},
	{projection.ErrProjectionFailure, http.StatusUnprocessableEntity},
	{sink.ErrIncompleteTarget, http.StatusBadRequest},
	{sink.ErrSinkFailure, http.StatusBadGateway},
}

// statusFor returns the HTTP status for err.
func statusFor(err error) int {
	for _, es := range errorStatuses {
		if errors.Is(err, es.target) {
			return es.status
		}
	}
	return http.StatusInternalServerError
}

// respondError logs the technical error server-side and writes the mapped
// user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"conversion_id", w.Header().Get(conversionIDHeader),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", args...)
	} else {
		logger.Warn("request error", args...)
	}

	resp := ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	}
	if core.IsUserFacing(err) {
		resp.Detail = err.Error()
	}
	writeJSON(w, status, resp)
}

// respondRateLimited is the rate limiter's rejection handler.
func (s *Server) respondRateLimited(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	msg := core.RateLimitedMessage()
	logging.FromContext(r.Context()).Warn("rate limited",
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
		"retry_after", retryAfter,
	)
	writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
