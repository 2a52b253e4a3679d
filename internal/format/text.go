package format

import (
	"bufio"
	"io"
	"strings"

	"github.com/sluicedata/sluice/internal/row"
)

// Text is the tab-delimited line format. Every field reads back as an
// untyped string; typing happens at expression evaluation.
type Text struct{}

func (Text) Name() string { return "text" }

func (Text) NewReader(r io.Reader) Reader {
	return &textReader{scan: bufio.NewScanner(r)}
}

func (Text) NewWriter(w io.Writer) Writer {
	return &textWriter{buf: bufio.NewWriter(w)}
}

type textReader struct {
	scan *bufio.Scanner
}

func (t *textReader) Next() (row.Tuple, error) {
	if !t.scan.Scan() {
		if err := t.scan.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	fields := strings.Split(t.scan.Text(), "\t")
	tuple := make(row.Tuple, len(fields))
	for i, f := range fields {
		tuple[i] = row.String(f)
	}
	return tuple, nil
}

type textWriter struct {
	buf *bufio.Writer
}

func (t *textWriter) Write(tuple row.Tuple) error {
	for i, v := range tuple {
		if i > 0 {
			if err := t.buf.WriteByte('\t'); err != nil {
				return err
			}
		}
		if _, err := t.buf.WriteString(v.Render()); err != nil {
			return err
		}
	}
	return t.buf.WriteByte('\n')
}

func (t *textWriter) Flush() error { return t.buf.Flush() }
