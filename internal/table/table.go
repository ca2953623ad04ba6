// Package table loads uploaded tabular files (delimited text or spreadsheets)
// into an in-memory Table of typed cells.
//
// A Table is built once per request from the raw upload bytes and handed to
// the projection package. Only the first sheet of a workbook is read.
package table

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Kind identifies how the raw bytes of an upload are parsed.
type Kind int

const (
	// KindUnknown is the zero value and is never loadable.
	KindUnknown Kind = iota
	// KindDelimited is delimited text (.csv).
	KindDelimited
	// KindSpreadsheet is an Excel workbook (.xls, .xlsx).
	KindSpreadsheet
)

// String returns the kind name used in logs and error messages.
func (k Kind) String() string {
	switch k {
	case KindDelimited:
		return "delimited"
	case KindSpreadsheet:
		return "spreadsheet"
	default:
		return "unknown"
	}
}

// extensionKinds maps lowercase file extensions to their Kind.
var extensionKinds = map[string]Kind{
	".csv":  KindDelimited,
	".xls":  KindSpreadsheet,
	".xlsx": KindSpreadsheet,
}

// KindFromFilename derives the Kind from the file extension.
// The match is case-insensitive. Any other extension fails with
// ErrUnsupportedFormat so callers can reject the file before reading it.
func KindFromFilename(name string) (Kind, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if kind, ok := extensionKinds[ext]; ok {
		return kind, nil
	}
	return KindUnknown, &LoadError{
		FileName: name,
		Kind:     KindUnknown,
		Row:      -1,
		Column:   -1,
		Err:      fmt.Errorf("%w: extension %q", ErrUnsupportedFormat, ext),
	}
}

// CellKind tags the value carried by a Cell.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
	CellDate
	CellBool
)

func (k CellKind) String() string {
	switch k {
	case CellText:
		return "text"
	case CellNumber:
		return "number"
	case CellDate:
		return "date"
	case CellBool:
		return "bool"
	default:
		return "empty"
	}
}

// Cell is a single typed value read from the source file.
//
// Source holds the text as it appeared in the file when the source was
// textual (delimited files, shared strings). Typed spreadsheet cells carry
// only their typed payload and render canonically.
type Cell struct {
	Kind   CellKind
	Source string
	Number float64
	Time   time.Time
	Bool   bool
}

// TextCell returns a text cell, or an empty cell for "".
func TextCell(s string) Cell {
	if s == "" {
		return Cell{}
	}
	return Cell{Kind: CellText, Source: s}
}

// NumberCell returns a numeric cell without source text.
func NumberCell(f float64) Cell {
	return Cell{Kind: CellNumber, Number: f}
}

// DateCell returns a date cell without source text.
func DateCell(t time.Time) Cell {
	return Cell{Kind: CellDate, Time: t}
}

// BoolCell returns a boolean cell without source text.
func BoolCell(b bool) Cell {
	return Cell{Kind: CellBool, Bool: b}
}

// IsEmpty reports whether the cell renders as the empty string.
func (c Cell) IsEmpty() bool {
	return c.Kind == CellEmpty || (c.Kind == CellText && c.Source == "")
}

// String renders the cell as text. Source text wins when present so that
// values like "007" or "1,5" survive unchanged.
func (c Cell) String() string {
	if c.Kind != CellEmpty && c.Source != "" {
		return c.Source
	}
	switch c.Kind {
	case CellText:
		return c.Source
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellDate:
		if c.Time.Hour() == 0 && c.Time.Minute() == 0 && c.Time.Second() == 0 && c.Time.Nanosecond() == 0 {
			return c.Time.Format("2006-01-02")
		}
		return c.Time.Format("2006-01-02T15:04:05")
	case CellBool:
		return strconv.FormatBool(c.Bool)
	default:
		return ""
	}
}

// Table is an ordered list of headers and rows aligned with them.
// Every row holds exactly len(Headers) cells.
type Table struct {
	Headers []string
	Rows    [][]Cell
}

// NumRows returns the number of data rows (the header row is not counted).
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int {
	return len(t.Headers)
}

// PlaceholderPrefix names columns without header text: Column1, Column2, ...
const PlaceholderPrefix = "Column"

// placeholderHeader returns the positional name for the zero-based column i.
func placeholderHeader(i int) string {
	return PlaceholderPrefix + strconv.Itoa(i+1)
}

// build turns parsed records into a Table. Column count is the widest of
// the header row and any data row; short rows are padded with empty cells.
func build(records [][]Cell, hasHeader bool) *Table {
	t := &Table{Headers: []string{}, Rows: [][]Cell{}}
	if len(records) == 0 {
		return t
	}

	var header []Cell
	data := records
	if hasHeader {
		header = records[0]
		data = records[1:]
	}

	width := len(header)
	for _, rec := range data {
		if len(rec) > width {
			width = len(rec)
		}
	}

	t.Headers = make([]string, width)
	for i := range t.Headers {
		name := ""
		if i < len(header) {
			name = strings.TrimSpace(header[i].String())
		}
		if name == "" {
			name = placeholderHeader(i)
		}
		t.Headers[i] = name
	}

	t.Rows = make([][]Cell, len(data))
	for i, rec := range data {
		t.Rows[i] = fitRow(rec, width)
	}
	return t
}

// fitRow pads or truncates a row to exactly width cells.
func fitRow(row []Cell, width int) []Cell {
	if len(row) == width {
		return row
	}
	out := make([]Cell, width)
	copy(out, row)
	return out
}
