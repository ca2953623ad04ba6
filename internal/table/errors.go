package table

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned when the file kind is neither
	// delimited text nor a spreadsheet.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrParseFailure is returned when the bytes cannot be interpreted as
	// the declared kind.
	ErrParseFailure = errors.New("parse failure")
)

// LoadError carries the context of a failed load. Row and Column are
// zero-based positions in the source file, or -1 when unknown.
type LoadError struct {
	FileName string
	Kind     Kind
	Row      int
	Column   int
	Err      error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	b.WriteString("load")
	if e.FileName != "" {
		fmt.Fprintf(&b, " %q", e.FileName)
	}
	fmt.Fprintf(&b, " as %s", e.Kind)
	if e.Row >= 0 {
		fmt.Fprintf(&b, " (row %d", e.Row+1)
		if e.Column >= 0 {
			fmt.Fprintf(&b, ", column %d", e.Column+1)
		}
		b.WriteString(")")
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// parseError wraps a parser failure into a LoadError.
func parseError(opts Options, kind Kind, row, col int, err error) *LoadError {
	return &LoadError{
		FileName: opts.FileName,
		Kind:     kind,
		Row:      row,
		Column:   col,
		Err:      fmt.Errorf("%w: %v", ErrParseFailure, err),
	}
}
