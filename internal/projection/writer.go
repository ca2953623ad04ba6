package projection

import (
	"bytes"
	"encoding/json"

	"github.com/JonMunkholm/tabjson/internal/table"
)

// writer builds the JSON document by hand so that key order follows the
// table instead of the sorted order encoding/json uses for maps. Strings go
// through a json.Encoder for escaping.
type writer struct {
	buf     bytes.Buffer
	scratch bytes.Buffer
	enc     *json.Encoder
}

func newWriter() *writer {
	w := &writer{}
	w.enc = json.NewEncoder(&w.scratch)
	w.enc.SetEscapeHTML(false)
	return w
}

// str writes s as a quoted JSON string.
func (w *writer) str(s string) {
	w.scratch.Reset()
	// Encoding a string cannot fail.
	_ = w.enc.Encode(s)
	w.buf.Write(bytes.TrimSuffix(w.scratch.Bytes(), []byte("\n")))
}

func (w *writer) rows(t *table.Table, keys []key, sparse bool) {
	w.buf.WriteByte('[')
	for i, row := range t.Rows {
		if i > 0 {
			w.buf.WriteByte(',')
		}
		w.buf.WriteByte('{')
		n := 0
		for _, k := range keys {
			cell := row[k.col]
			if sparse && cell.IsEmpty() {
				continue
			}
			if n > 0 {
				w.buf.WriteByte(',')
			}
			w.str(k.name)
			w.buf.WriteByte(':')
			w.str(cell.String())
			n++
		}
		w.buf.WriteByte('}')
	}
	w.buf.WriteByte(']')
}

func (w *writer) columns(t *table.Table, keys []key) {
	w.buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			w.buf.WriteByte(',')
		}
		w.str(k.name)
		w.buf.WriteString(":[")
		for j, row := range t.Rows {
			if j > 0 {
				w.buf.WriteByte(',')
			}
			w.str(row[k.col].String())
		}
		w.buf.WriteByte(']')
	}
	w.buf.WriteByte('}')
}
