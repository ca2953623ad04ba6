package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// delimiterCandidates are tried in order; earlier entries win ties.
var delimiterCandidates = []rune{',', ';', '\t', '|', '#'}

// delimiterSampleLines bounds how many lines auto-detection inspects.
const delimiterSampleLines = 10

func readDelimited(data []byte, opts Options) ([][]Cell, error) {
	text, err := io.ReadAll(textReader(data, opts.Charset))
	if err != nil {
		return nil, parseError(opts, KindDelimited, -1, -1, err)
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = detectDelimiter(text)
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = opts.TrimSpace

	records := [][]Cell{}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, parseError(opts, KindDelimited, pe.Line-1, pe.Column-1, pe.Err)
			}
			return nil, parseError(opts, KindDelimited, len(records), -1, err)
		}

		row := make([]Cell, len(rec))
		for i, field := range rec {
			if opts.TrimSpace {
				field = strings.TrimSpace(field)
			}
			row[i] = InferCell(field)
		}
		records = append(records, row)
	}

	return records, nil
}

// detectDelimiter picks the candidate that splits the sampled lines most
// consistently. A candidate must appear on the first line; the score is the
// number of sampled lines with the same count as the first line, with the
// first-line count as tie breaker. Falls back to ','.
func detectDelimiter(text []byte) rune {
	lines := sampleLines(text, delimiterSampleLines)
	if len(lines) == 0 {
		return ','
	}

	best, bestScore, bestWidth := ',', 0, 0
	for _, c := range delimiterCandidates {
		first := countOutsideQuotes(lines[0], c)
		if first == 0 {
			continue
		}
		score := 0
		for _, line := range lines {
			if countOutsideQuotes(line, c) == first {
				score++
			}
		}
		if score > bestScore || (score == bestScore && first > bestWidth) {
			best, bestScore, bestWidth = c, score, first
		}
	}
	return best
}

// sampleLines splits up to max logical lines, keeping quoted newlines
// inside their line. Blank lines are skipped.
func sampleLines(text []byte, max int) []string {
	var (
		lines    []string
		b        strings.Builder
		inQuotes bool
	)
	flush := func() {
		if s := strings.TrimRight(b.String(), "\r"); strings.TrimSpace(s) != "" {
			lines = append(lines, s)
		}
		b.Reset()
	}
	for _, ch := range string(text) {
		if len(lines) >= max {
			return lines
		}
		if ch == '"' {
			inQuotes = !inQuotes
		}
		if ch == '\n' && !inQuotes {
			flush()
			continue
		}
		b.WriteRune(ch)
	}
	if len(lines) < max {
		flush()
	}
	return lines
}

func countOutsideQuotes(line string, c rune) int {
	n := 0
	inQuotes := false
	for _, ch := range line {
		switch {
		case ch == '"':
			inQuotes = !inQuotes
		case ch == c && !inQuotes:
			n++
		}
	}
	return n
}
