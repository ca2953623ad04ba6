package core

// # Error Codes Reference
//
// Every failure that reaches a client carries a stable code that can be quoted
// to support staff. Codes are grouped by category:
//
// # Format and Parse Errors
//
//	FMT001   - Unsupported format: the file is not .csv, .xls or .xlsx
//	           Action: Upload a CSV or Excel file
//	           Match: table.ErrUnsupportedFormat, projection.ErrUnknownPolicy
//
//	PARSE001 - Parse failure: the file could not be read as its format
//	           Action: Check that the file opens in a spreadsheet program
//	           Match: table.ErrParseFailure
//
//	PROJ001  - Projection failure: the table could not be rendered as JSON
//	           Action: Please try again or contact support
//	           Match: projection.ErrProjectionFailure
//
// # Sink Errors
//
//	SINK002  - Incomplete target: endpoint, container or blob name missing
//	           Action: Provide endpoint, container and blob
//	           Match: sink.ErrIncompleteTarget
//
//	SINK001  - Storage failure: the document could not be stored
//	           Action: Check the endpoint and credentials, then try again
//	           Match: sink.ErrSinkFailure
//
// # File Errors
//
//	FILE001  - File too large        Match: ErrFileTooLarge, "file too large"
//	FILE004  - No file               Match: ErrNoFile, "no file provided"
//	FILE005  - Empty file            Match: ErrEmptyFile, "empty file"
//	REQ001   - Malformed request     Match: ErrInvalidRequest
//
// # Upload Errors
//
//	UPL002   - System busy           Match: ErrTooManyUploads
//	UPL004   - Request cancelled     Match: context.Canceled
//	UPL005   - Request timeout       Match: context.DeadlineExceeded
//
// # Rate Limiting
//
//	RATE001  - Too many requests     Match: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Support staff should check the logs for the
// technical error, keyed by the conversion ID returned to the client.
//
// # Matching
//
// Sentinels are matched with errors.Is in table order, so the more specific
// ones come first (SINK002 before SINK001, timeouts before the sink that
// timed out). Errors that lost their chain fall back to case-insensitive
// substring patterns.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/tabjson/internal/projection"
	"github.com/JonMunkholm/tabjson/internal/sink"
	"github.com/JonMunkholm/tabjson/internal/table"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgUnsupported = UserMessage{
		Message: "This file format is not supported",
		Action:  "Upload a .csv, .xls or .xlsx file",
		Code:    "FMT001",
	}
	msgUnknownPolicy = UserMessage{
		Message: "Unknown output policy",
		Action:  "Use rows, rows-sparse or columns",
		Code:    "FMT001",
	}
	msgParse = UserMessage{
		Message: "The file could not be read",
		Action:  "Check that the file opens in a spreadsheet program and is not damaged",
		Code:    "PARSE001",
	}
	msgProjection = UserMessage{
		Message: "The table could not be converted to JSON",
		Action:  "Please try again or contact support",
		Code:    "PROJ001",
	}
	msgIncompleteTarget = UserMessage{
		Message: "Storage target is incomplete",
		Action:  "Provide endpoint, container and blob",
		Code:    "SINK002",
	}
	msgSink = UserMessage{
		Message: "The converted document could not be stored",
		Action:  "Check the storage endpoint and credentials, then try again",
		Code:    "SINK001",
	}
	msgTooLarge = UserMessage{
		Message: "File exceeds maximum size limit",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}
	msgNoFile = UserMessage{
		Message: "No file was selected",
		Action:  "Please select a CSV or Excel file to upload",
		Code:    "FILE004",
	}
	msgEmptyFile = UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Please upload a file with data",
		Code:    "FILE005",
	}
	msgInvalidRequest = UserMessage{
		Message: "The request could not be read",
		Action:  "Send a multipart form with the file in the \"file\" field",
		Code:    "REQ001",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other conversions",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or check your connection",
		Code:    "UPL005",
	}
	msgRateLimited = UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}
)

// errorKind pairs a sentinel error with its user message.
type errorKind struct {
	target error
	msg    UserMessage
}

// errorKinds is checked with errors.Is; the first match wins.
var errorKinds = []errorKind{
	{ErrTooManyUploads, msgBusy},
	{context.DeadlineExceeded, msgTimeout},
	{context.Canceled, msgCancelled},
	{ErrNoFile, msgNoFile},
	{ErrEmptyFile, msgEmptyFile},
	{ErrFileTooLarge, msgTooLarge},
	{ErrInvalidRequest, msgInvalidRequest},
	{table.ErrUnsupportedFormat, msgUnsupported},
	{projection.ErrUnknownPolicy, msgUnknownPolicy},
	{table.ErrParseFailure, msgParse},
	{projection.ErrProjectionFailure, msgProjection},
	{sink.ErrIncompleteTarget, msgIncompleteTarget},
	{sink.ErrSinkFailure, msgSink},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catches errors whose chain was flattened into text, such as
// http.MaxBytesError messages or errors crossing a process boundary.
var errorPatterns = []errorPattern{
	{pattern: "request body too large", msg: msgTooLarge},
	{pattern: "file too large", msg: msgTooLarge},
	{pattern: "no file provided", msg: msgNoFile},
	{pattern: "empty file", msg: msgEmptyFile},
	{pattern: "unsupported format", msg: msgUnsupported},
	{pattern: "parse failure", msg: msgParse},
	{pattern: "projection failure", msg: msgProjection},
	{pattern: "incomplete sink target", msg: msgIncompleteTarget},
	{pattern: "sink failure", msg: msgSink},
	{pattern: "too many concurrent", msg: msgBusy},
	{pattern: "context canceled", msg: msgCancelled},
	{pattern: "context deadline exceeded", msg: msgTimeout},
	{pattern: "rate limit", msg: msgRateLimited},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// RateLimitedMessage is the message for requests rejected by the rate limiter.
func RateLimitedMessage() UserMessage {
	return msgRateLimited
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	_, err := table.KindFromFilename("data.txt")
//	msg := MapError(err)
//	// msg.Code == "FMT001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging while providing a clean message for users.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError creates a UserError by mapping a technical error.
// Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
