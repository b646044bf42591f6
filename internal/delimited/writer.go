package delimited

import (
	"encoding/csv"
	"fmt"
	"io"
)

// Writer emits rows as delimited text, quoting cells with '"' when needed.
type Writer struct {
	cw *csv.Writer
}

// NewWriter creates a Writer using the given delimiter.
func NewWriter(w io.Writer, delimiter rune) (*Writer, error) {
	d := Dialect{Delimiter: delimiter, Quote: '"'}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("output dialect: %w", err)
	}
	cw := csv.NewWriter(w)
	cw.Comma = delimiter
	return &Writer{cw: cw}, nil
}

// Write buffers one row.
func (w *Writer) Write(row []string) error {
	return w.cw.Write(row)
}

// Flush writes any buffered rows to the underlying writer.
func (w *Writer) Flush() error {
	w.cw.Flush()
	return w.cw.Error()
}
