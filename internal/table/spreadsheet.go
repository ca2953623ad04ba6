package table

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

var errNotWorkbook = errors.New("not an Excel workbook")

// readSpreadsheet reads the first sheet of a workbook. The container format
// is detected from the leading bytes, so a .xls file that is really OOXML
// still loads.
func readSpreadsheet(data []byte, opts Options) (records [][]Cell, err error) {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return readXLSX(data, opts)
	case bytes.HasPrefix(data, oleMagic):
		return readXLS(data, opts)
	default:
		return nil, parseError(opts, KindSpreadsheet, -1, -1, errNotWorkbook)
	}
}

func readXLSX(data []byte, opts Options) ([][]Cell, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, parseError(opts, KindSpreadsheet, -1, -1, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return [][]Cell{}, nil
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, parseError(opts, KindSpreadsheet, -1, -1, fmt.Errorf("read sheet %q: %w", sheet, err))
	}

	r := &xlsxCellReader{f: f, sheet: sheet, dateStyles: map[int]bool{}}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		r.date1904 = *props.Date1904
	}

	records := make([][]Cell, len(rows))
	for i, row := range rows {
		cells := make([]Cell, len(row))
		for j, formatted := range row {
			cell, err := r.cell(i, j, formatted)
			if err != nil {
				return nil, parseError(opts, KindSpreadsheet, i, j, err)
			}
			if opts.TrimSpace && cell.Source != "" {
				cell.Source = strings.TrimSpace(cell.Source)
				if cell.Source == "" {
					cell = Cell{}
				}
			}
			cells[j] = cell
		}
		records[i] = cells
	}
	return records, nil
}

// xlsxCellReader turns excelize cells into typed Cells using the cell type
// and number format recorded in the workbook.
type xlsxCellReader struct {
	f          *excelize.File
	sheet      string
	date1904   bool
	dateStyles map[int]bool
}

func (r *xlsxCellReader) cell(row, col int, formatted string) (Cell, error) {
	name, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return Cell{}, err
	}
	typ, err := r.f.GetCellType(r.sheet, name)
	if err != nil {
		return Cell{}, err
	}

	switch typ {
	case excelize.CellTypeBool:
		raw, err := r.f.GetCellValue(r.sheet, name, excelize.Options{RawCellValue: true})
		if err != nil {
			return Cell{}, err
		}
		return BoolCell(raw == "1" || strings.EqualFold(raw, "true")), nil

	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		raw, err := r.f.GetCellValue(r.sheet, name, excelize.Options{RawCellValue: true})
		if err != nil {
			return Cell{}, err
		}
		if raw == "" {
			return TextCell(formatted), nil
		}
		num, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return TextCell(formatted), nil
		}
		isDate, err := r.isDateStyled(name)
		if err != nil {
			return Cell{}, err
		}
		if isDate {
			t, err := excelize.ExcelDateToTime(num, r.date1904)
			if err == nil {
				return DateCell(t.Round(time.Second)), nil
			}
		}
		return NumberCell(num), nil

	case excelize.CellTypeDate:
		raw, err := r.f.GetCellValue(r.sheet, name, excelize.Options{RawCellValue: true})
		if err != nil {
			return Cell{}, err
		}
		if t, ok := parseISODate(raw); ok {
			return DateCell(t), nil
		}
		return TextCell(formatted), nil

	default:
		// Shared and inline strings, string formulas and error values.
		return TextCell(formatted), nil
	}
}

// isDateStyled reports whether the cell's number format displays a date or
// time. Results are cached per style index.
func (r *xlsxCellReader) isDateStyled(cell string) (bool, error) {
	idx, err := r.f.GetCellStyle(r.sheet, cell)
	if err != nil {
		return false, err
	}
	if v, ok := r.dateStyles[idx]; ok {
		return v, nil
	}

	isDate := false
	if style, err := r.f.GetStyle(idx); err == nil && style != nil {
		if style.CustomNumFmt != nil {
			isDate = isDateFormat(*style.CustomNumFmt)
		} else {
			isDate = isBuiltInDateFormat(style.NumFmt)
		}
	}
	r.dateStyles[idx] = isDate
	return isDate, nil
}

// isBuiltInDateFormat covers the built-in date/time number format ids,
// including the locale specific ranges.
func isBuiltInDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 22:
		return true
	case id >= 27 && id <= 36:
		return true
	case id >= 45 && id <= 47:
		return true
	case id >= 50 && id <= 58:
		return true
	}
	return false
}

// isDateFormat inspects a custom number format code. Quoted literals,
// bracketed sections ([Red], [$-409]) and escaped characters are ignored.
func isDateFormat(code string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == '[':
			inBracket = true
		case c == ']':
			inBracket = false
		case inBracket:
		case c == '\\' || c == '_' || c == '*':
			i++
		default:
			b.WriteByte(c)
		}
	}
	s := strings.ToLower(b.String())
	if s == "" || s == "general" || s == "@" {
		return false
	}
	return strings.ContainsAny(s, "ydh") || strings.Contains(s, "m:s") || strings.Contains(s, "mm:ss")
}

func parseISODate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// readXLS reads a legacy BIFF workbook. The xls parser panics on some
// malformed files, so panics are recovered into a parse failure.
func readXLS(data []byte, opts Options) (records [][]Cell, err error) {
	defer func() {
		if p := recover(); p != nil {
			records = nil
			err = parseError(opts, KindSpreadsheet, -1, -1, fmt.Errorf("corrupt xls: %v", p))
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, parseError(opts, KindSpreadsheet, -1, -1, err)
	}
	if wb.NumSheets() == 0 {
		return [][]Cell{}, nil
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return [][]Cell{}, nil
	}

	records = make([][]Cell, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := xlsRow(sheet, i)
		if row == nil {
			records = append(records, []Cell{})
			continue
		}
		cells := make([]Cell, row.LastCol())
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			v := row.Col(j)
			if opts.TrimSpace {
				v = strings.TrimSpace(v)
			}
			cells[j] = InferCell(v)
		}
		records = append(records, cells)
	}
	return records, nil
}

// xlsRow returns row i of sheet, or nil when the sheet stores no record for
// it. WorkSheet.Row dereferences missing rows, so blank rows panic.
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}
