package table

import (
	"fmt"

	"golang.org/x/text/encoding"
)

// Options controls how a file is loaded.
type Options struct {
	// HasHeader makes the first row the column headers.
	HasHeader bool

	// Delimiter for delimited text. Zero auto-detects from the first lines.
	Delimiter rune

	// Charset decodes delimited text that is not valid UTF-8.
	// Resolve it once with LookupCharset; nil sanitizes instead.
	Charset encoding.Encoding

	// TrimSpace trims surrounding whitespace from every cell.
	TrimSpace bool

	// FileName is only used in error messages.
	FileName string
}

// DefaultOptions returns options with a header row and trimmed cells.
func DefaultOptions() Options {
	return Options{HasHeader: true, TrimSpace: true}
}

// Load parses data as the given kind and returns the first table it holds.
// Unknown kinds fail with ErrUnsupportedFormat, unreadable bytes with
// ErrParseFailure; both are wrapped in a *LoadError.
func Load(data []byte, kind Kind, opts Options) (*Table, error) {
	var (
		records [][]Cell
		err     error
	)

	switch kind {
	case KindDelimited:
		records, err = readDelimited(data, opts)
	case KindSpreadsheet:
		records, err = readSpreadsheet(data, opts)
	default:
		return nil, &LoadError{
			FileName: opts.FileName,
			Kind:     kind,
			Row:      -1,
			Column:   -1,
			Err:      fmt.Errorf("%w: kind %d", ErrUnsupportedFormat, int(kind)),
		}
	}
	if err != nil {
		return nil, err
	}

	return build(records, opts.HasHeader), nil
}

// LoadFile detects the kind from name and loads data. The extension check
// runs before any byte is parsed.
func LoadFile(name string, data []byte, opts Options) (*Table, error) {
	kind, err := KindFromFilename(name)
	if err != nil {
		return nil, err
	}
	opts.FileName = name
	return Load(data, kind, opts)
}
