package format

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sluicedata/sluice/internal/row"
)

// Rows is the row-oriented intermediate format: one JSON array per line,
// values tagged so types survive a round trip. This is the default format
// for synthetic sink locations.
type Rows struct{}

func (Rows) Name() string { return "rows" }

func (Rows) NewReader(r io.Reader) Reader {
	return &rowsReader{dec: json.NewDecoder(bufio.NewReader(r))}
}

func (Rows) NewWriter(w io.Writer) Writer {
	return &rowsWriter{buf: bufio.NewWriter(w)}
}

// cell is the wire form of one value.
type cell struct {
	T string `json:"t"`
	S string `json:"s,omitempty"`
	I int64  `json:"i,omitempty"`
	B bool   `json:"b,omitempty"`
}

type rowsReader struct {
	dec *json.Decoder
}

func (r *rowsReader) Next() (row.Tuple, error) {
	var cells []cell
	if err := r.dec.Decode(&cells); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("decode row: %w", err)
	}
	tuple := make(row.Tuple, len(cells))
	for i, c := range cells {
		switch c.T {
		case "s":
			tuple[i] = row.String(c.S)
		case "i":
			tuple[i] = row.Int(c.I)
		case "b":
			tuple[i] = row.Bool(c.B)
		default:
			return nil, fmt.Errorf("decode row: unknown cell tag %q", c.T)
		}
	}
	return tuple, nil
}

type rowsWriter struct {
	buf *bufio.Writer
}

func (w *rowsWriter) Write(tuple row.Tuple) error {
	cells := make([]cell, len(tuple))
	for i, v := range tuple {
		switch v.Kind {
		case row.KindInt:
			cells[i] = cell{T: "i", I: v.Int}
		case row.KindBool:
			cells[i] = cell{T: "b", B: v.Bool}
		default:
			cells[i] = cell{T: "s", S: v.Str}
		}
	}
	raw, err := json.Marshal(cells)
	if err != nil {
		return err
	}
	if _, err := w.buf.Write(raw); err != nil {
		return err
	}
	return w.buf.WriteByte('\n')
}

func (w *rowsWriter) Flush() error { return w.buf.Flush() }
