package delimited

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Reader streams the rows of a delimited file.
//
// Behavior:
//   - Empty lines are skipped and every cell is trimmed of surrounding spaces.
//   - Rows may carry a variable number of cells; callers detect short rows
//     through Header.Field / Header.Value.
//   - A quote character other than '"' is supported by exchanging it with '"'
//     before tokenizing and exchanging it back in every cell.
//   - Invalid UTF-8 bytes are read as U+FFFD whatever the quote character.
type Reader struct {
	cr      *csv.Reader
	dialect Dialect
	row     int
	line    int
}

// NewReader wraps r for the given dialect.
func NewReader(r io.Reader, d Dialect) (*Reader, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("dialect: %w", err)
	}
	// runes.Map also replaces ill-formed bytes, so both paths decode alike.
	var t transform.Transformer = runes.ReplaceIllFormed()
	if !d.standardQuote() {
		t = runes.Map(d.swapQuote)
	}
	r = transform.NewReader(r, t)
	cr := csv.NewReader(r)
	cr.Comma = d.swapQuote(d.Delimiter)
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	return &Reader{cr: cr, dialect: d}, nil
}

// ReadHeader reads the first row as the column header.
func (r *Reader) ReadHeader() (Header, error) {
	rec, err := r.read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Header{}, errors.New("read header: file is empty")
		}
		return Header{}, fmt.Errorf("read header: %w", err)
	}
	return NewHeader(rec), nil
}

// Read returns the next data row, or io.EOF at the end of input. A malformed
// row is returned as a *csv.ParseError; reading may continue after it.
func (r *Reader) Read() ([]string, error) {
	rec, err := r.read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			r.row++
			r.line = pe.StartLine
		}
		return nil, err
	}
	r.row++
	return rec, nil
}

// Row is the 1-based data row number of the last row returned by Read,
// not counting the header.
func (r *Reader) Row() int { return r.row }

// Line is the input line where the last returned row started.
func (r *Reader) Line() int { return r.line }

func (r *Reader) read() ([]string, error) {
	rec, err := r.cr.Read()
	if err != nil {
		return nil, err
	}
	r.line, _ = r.cr.FieldPos(0)
	for i, cell := range rec {
		if !r.dialect.standardQuote() {
			cell = strings.Map(r.dialect.swapQuote, cell)
		}
		rec[i] = strings.TrimSpace(cell)
	}
	return rec, nil
}

// IsRowError reports whether err describes a single malformed row rather
// than a failure of the underlying stream.
func IsRowError(err error) bool {
	var pe *csv.ParseError
	var sr *ShortRowError
	var ve *ValueParseError
	return errors.As(err, &pe) || errors.As(err, &sr) || errors.As(err, &ve)
}
