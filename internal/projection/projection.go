// Package projection renders a table.Table as a JSON document.
//
// Three policies are supported:
//
//	PolicyRows        [{"name":"Ada","age":"36"},{"name":"Lin","age":""}]
//	PolicyRowsSparse  [{"name":"Ada","age":"36"},{"name":"Lin"}]
//	PolicyColumns     {"name":["Ada","Lin"],"age":["36",""]}
//
// Every value is emitted as a JSON string. Row order and header order follow
// the table exactly, so projecting the same table twice yields identical
// bytes. With PolicyRowsSparse the row objects no longer share one key set.
//
// Duplicate header names collapse into a single key placed at the first
// occurrence and holding the value of the last column with that name.
package projection

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/tabjson/internal/table"
)

// Policy selects the JSON shape.
type Policy int

const (
	// PolicyRows emits one object per row with every header as a key.
	PolicyRows Policy = iota
	// PolicyRowsSparse is PolicyRows without keys for empty cells.
	PolicyRowsSparse
	// PolicyColumns emits one object mapping each header to its column values.
	PolicyColumns
)

// ErrUnknownPolicy is returned by ParsePolicy for unrecognized names.
var ErrUnknownPolicy = errors.New("unknown projection policy")

// ErrProjectionFailure marks a table that violates its row width invariant.
var ErrProjectionFailure = errors.New("projection failure")

func (p Policy) String() string {
	switch p {
	case PolicyRows:
		return "rows"
	case PolicyRowsSparse:
		return "rows-sparse"
	case PolicyColumns:
		return "columns"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy maps a policy name to a Policy. The empty string selects
// PolicyRows.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rows", "row":
		return PolicyRows, nil
	case "rows-sparse", "sparse":
		return PolicyRowsSparse, nil
	case "columns", "column":
		return PolicyColumns, nil
	default:
		return PolicyRows, fmt.Errorf("%w: %q (want rows, rows-sparse or columns)", ErrUnknownPolicy, s)
	}
}

// ProjectionError reports a row whose width differs from the header count.
// Row is zero-based; -1 means the table itself was missing.
type ProjectionError struct {
	Row     int
	Cells   int
	Headers int
	Err     error
}

func (e *ProjectionError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("project table: %v", e.Err)
	}
	return fmt.Sprintf("project table: row %d has %d cells, want %d: %v", e.Row+1, e.Cells, e.Headers, e.Err)
}

func (e *ProjectionError) Unwrap() error {
	return e.Err
}

// Options configures a projection.
type Options struct {
	Policy Policy

	// Indent pretty-prints the document with two-space indentation.
	Indent bool
}

// Project renders t with the given policy as compact JSON.
func Project(t *table.Table, policy Policy) ([]byte, error) {
	return ProjectWith(t, Options{Policy: policy})
}

// ProjectWith renders t according to opts.
func ProjectWith(t *table.Table, opts Options) ([]byte, error) {
	if err := validate(t); err != nil {
		return nil, err
	}

	w := newWriter()
	keys := columnKeys(t.Headers)

	switch opts.Policy {
	case PolicyRows:
		w.rows(t, keys, false)
	case PolicyRowsSparse:
		w.rows(t, keys, true)
	case PolicyColumns:
		w.columns(t, keys)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownPolicy, int(opts.Policy))
	}

	out := w.buf.Bytes()
	if !opts.Indent {
		return out, nil
	}

	var indented bytes.Buffer
	if err := json.Indent(&indented, out, "", "  "); err != nil {
		return nil, &ProjectionError{Row: -1, Err: fmt.Errorf("%w: indent: %v", ErrProjectionFailure, err)}
	}
	return indented.Bytes(), nil
}

func validate(t *table.Table) error {
	if t == nil {
		return &ProjectionError{Row: -1, Err: fmt.Errorf("%w: nil table", ErrProjectionFailure)}
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Headers) {
			return &ProjectionError{
				Row:     i,
				Cells:   len(row),
				Headers: len(t.Headers),
				Err:     ErrProjectionFailure,
			}
		}
	}
	return nil
}

// key is one output key: the header name and the column that supplies its
// value.
type key struct {
	name string
	col  int
}

// columnKeys dedupes headers. Order follows first occurrence, the column is
// the last occurrence.
func columnKeys(headers []string) []key {
	keys := make([]key, 0, len(headers))
	pos := make(map[string]int, len(headers))
	for i, h := range headers {
		if j, ok := pos[h]; ok {
			keys[j].col = i
			continue
		}
		pos[h] = len(keys)
		keys = append(keys, key{name: h, col: i})
	}
	return keys
}
