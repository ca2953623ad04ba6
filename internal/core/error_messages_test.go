package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/tabjson/internal/projection"
	"github.com/JonMunkholm/tabjson/internal/sink"
	"github.com/JonMunkholm/tabjson/internal/table"
)

func TestMapError(t *testing.T) {
	_, unsupported := table.KindFromFilename("data.txt")
	_, corrupt := table.Load([]byte("not a workbook"), table.KindSpreadsheet, table.Options{FileName: "corrupt.xlsx"})
	_, projErr := projection.Project(&table.Table{Headers: []string{"a"}, Rows: [][]table.Cell{{}, {}, {{}, {}}}}, projection.PolicyRows)
	_, policyErr := projection.ParsePolicy("tree")
	incomplete := sink.Target{Endpoint: "https://x"}.Validate()
	sinkFailure := &sink.Error{Provider: "azure", Op: "upload", Err: errors.New("403 forbidden")}
	sinkTimeout := &sink.Error{Provider: "s3", Op: "put object", Err: context.DeadlineExceeded}

	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "unsupported extension",
			err:         unsupported,
			wantCode:    "FMT001",
			wantMessage: "This file format is not supported",
		},
		{
			name:     "unknown policy",
			err:      policyErr,
			wantCode: "FMT001",
		},
		{
			name:        "corrupt spreadsheet",
			err:         corrupt,
			wantCode:    "PARSE001",
			wantMessage: "The file could not be read",
		},
		{
			name:     "projection invariant",
			err:      projErr,
			wantCode: "PROJ001",
		},
		{
			name:        "incomplete sink target",
			err:         incomplete,
			wantCode:    "SINK002",
			wantMessage: "Storage target is incomplete",
		},
		{
			name:     "sink failure",
			err:      sinkFailure,
			wantCode: "SINK001",
		},
		{
			name:     "sink timeout reports the timeout",
			err:      sinkTimeout,
			wantCode: "UPL005",
		},
		{
			name:     "wrapped too large",
			err:      fmt.Errorf("%w: 200MB exceeds limit", ErrFileTooLarge),
			wantCode: "FILE001",
		},
		{
			name:     "max bytes reader text",
			err:      errors.New("http: request body too large"),
			wantCode: "FILE001",
		},
		{
			name:     "no file",
			err:      ErrNoFile,
			wantCode: "FILE004",
		},
		{
			name:     "empty file",
			err:      fmt.Errorf("%w: %q", ErrEmptyFile, "a.csv"),
			wantCode: "FILE005",
		},
		{
			name:        "busy",
			err:         ErrTooManyUploads,
			wantCode:    "UPL002",
			wantMessage: "System is busy processing other conversions",
		},
		{
			name:     "cancelled",
			err:      context.Canceled,
			wantCode: "UPL004",
		},
		{
			name:     "flattened timeout text",
			err:      errors.New("upstream: context deadline exceeded"),
			wantCode: "UPL005",
		},
		{
			name:     "rate limit text",
			err:      errors.New("rate limit exceeded"),
			wantCode: "RATE001",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q (err: %v)", got.Code, tt.wantCode, tt.err)
			}
			if tt.wantMessage != "" && got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
			if tt.err != nil && got.Action == "" {
				t.Error("MapError() action is empty")
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	_, err := table.KindFromFilename("notes.json")
	result := FormatUserError(err)

	expected := "This file format is not supported (Code: FMT001). Upload a .csv, .xls or .xlsx file"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error is not user facing", err: nil, want: false},
		{name: "known error is user facing", err: ErrTooManyUploads, want: true},
		{name: "unknown error is not user facing", err: errors.New("random internal error xyz"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("%w: %q", ErrEmptyFile, "a.csv")
		userErr := NewUserError(techErr)

		if userErr.Error() != "The uploaded file is empty" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if userErr.User.Code != "FILE005" {
			t.Errorf("Code = %q, want FILE005", userErr.User.Code)
		}
		if !errors.Is(userErr, ErrEmptyFile) {
			t.Error("Unwrap() should return original error")
		}
	})
}
