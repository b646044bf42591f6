package delimited

import (
	"fmt"
	"strings"
)

// MissingColumnError reports configured columns that a header does not carry.
type MissingColumnError struct {
	Columns []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Columns, ", "))
}

// ShortRowError reports a row that ends before a column the header names.
type ShortRowError struct {
	Column string
	Fields int
}

func (e *ShortRowError) Error() string {
	return fmt.Sprintf("row has %d fields, no value for column %q", e.Fields, e.Column)
}

// Header maps column names to their positions in a row.
type Header struct {
	names []string
	index map[string]int
}

// NewHeader indexes the given column names. Names are trimmed; when a name
// repeats, the last occurrence wins.
func NewHeader(names []string) Header {
	h := Header{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, n := range names {
		n = strings.TrimSpace(n)
		h.names[i] = n
		h.index[n] = i
	}
	return h
}

// Names returns the column names in file order.
func (h Header) Names() []string {
	return append([]string(nil), h.names...)
}

// Index returns the position of a column.
func (h Header) Index(name string) (int, bool) {
	i, ok := h.index[name]
	return i, ok
}

// Require checks that every name is present and reports all missing ones at once.
func (h Header) Require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := h.index[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnError{Columns: missing}
	}
	return nil
}

// Field returns the cell at position i of rec, naming the column on a short row.
func (h Header) Field(rec []string, i int) (string, error) {
	if i < 0 || i >= len(rec) {
		name := ""
		if i >= 0 && i < len(h.names) {
			name = h.names[i]
		}
		return "", &ShortRowError{Column: name, Fields: len(rec)}
	}
	return rec[i], nil
}

// Value returns the cell of the named column.
func (h Header) Value(rec []string, name string) (string, error) {
	i, ok := h.index[name]
	if !ok {
		return "", &MissingColumnError{Columns: []string{name}}
	}
	return h.Field(rec, i)
}
