package table

// charset.go prepares delimited-text bytes for the CSV reader.
//
// Text exported from Excel on Windows is frequently windows-1252 rather
// than UTF-8. The fallback charset is resolved once at process startup with
// LookupCharset and carried in Options; each load only runs the decoder.

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// utf8BOM is the byte order mark prepended by many Windows programs.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LookupCharset resolves an IANA charset name (e.g. "windows-1252",
// "ISO-8859-1"). An empty name or "utf-8" returns nil, meaning no fallback.
func LookupCharset(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return nil, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("lookup charset %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("lookup charset %q: not supported", name)
	}
	if enc == unicode.UTF8 {
		return nil, nil
	}
	return enc, nil
}

// textReader returns a reader producing valid UTF-8 without a BOM.
// Input that is already valid UTF-8 passes through; otherwise the fallback
// charset decodes it, and with no fallback invalid bytes become '?'.
func textReader(data []byte, fallback encoding.Encoding) io.Reader {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return bytes.NewReader(data)
	}
	if fallback != nil {
		return transform.NewReader(bytes.NewReader(data), fallback.NewDecoder())
	}
	return newSanitizer(bytes.NewReader(data))
}

// sanitizer replaces invalid UTF-8 bytes with '?' while streaming.
// A multi-byte sequence split across two reads is held back in pending
// until the rest of it arrives.
type sanitizer struct {
	r       io.Reader
	pending []byte
}

func newSanitizer(r io.Reader) *sanitizer {
	return &sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *sanitizer) Read(p []byte) (int, error) {
	if len(p) < utf8.UTFMax {
		return 0, io.ErrShortBuffer
	}

	n := copy(p, s.pending)
	s.pending = s.pending[:0]

	m, err := s.r.Read(p[n:])
	n += m
	if n == 0 {
		return 0, err
	}

	return s.clean(p[:n], err == io.EOF), err
}

// clean rewrites data in place and returns the number of bytes to emit.
func (s *sanitizer) clean(data []byte, atEOF bool) int {
	w := 0
	for r := 0; r < len(data); {
		if data[r] < utf8.RuneSelf {
			data[w] = data[r]
			w++
			r++
			continue
		}
		if !atEOF && !utf8.FullRune(data[r:]) {
			s.pending = append(s.pending, data[r:]...)
			return w
		}
		ch, size := utf8.DecodeRune(data[r:])
		if ch == utf8.RuneError && size == 1 {
			data[w] = '?'
			w++
			r++
			continue
		}
		w += copy(data[w:], data[r:r+size])
		r += size
	}
	return w
}
