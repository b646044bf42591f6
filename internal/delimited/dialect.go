package delimited

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Dialect describes how a delimited file separates and quotes its cells.
type Dialect struct {
	Delimiter rune
	Quote     rune
}

// PipeDialect is the default dialect of market and risk files.
var PipeDialect = Dialect{Delimiter: '|', Quote: '"'}

// Validate rejects dialects that cannot be tokenized unambiguously.
func (d Dialect) Validate() error {
	switch {
	case d.Delimiter == 0:
		return errors.New("delimiter is not set")
	case d.Quote == 0:
		return errors.New("quote character is not set")
	case d.Delimiter == d.Quote:
		return fmt.Errorf("delimiter and quote character are both %q", d.Delimiter)
	case isLineBreak(d.Delimiter) || isLineBreak(d.Quote):
		return errors.New("delimiter and quote character cannot be line breaks")
	case !utf8.ValidRune(d.Delimiter) || d.Delimiter == utf8.RuneError:
		return fmt.Errorf("invalid delimiter %q", d.Delimiter)
	case !utf8.ValidRune(d.Quote) || d.Quote == utf8.RuneError:
		return fmt.Errorf("invalid quote character %q", d.Quote)
	}
	return nil
}

// ParseRune reads a single-character setting such as "|" or `\t`.
func ParseRune(s string) (rune, error) {
	switch s {
	case `\t`, "tab", "TAB":
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("expected a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

func isLineBreak(r rune) bool { return r == '\r' || r == '\n' }

// swapQuote exchanges the dialect quote and the '"' rune. Applying it twice
// is the identity, so the same mapping prepares input for encoding/csv and
// restores the original text of every cell afterwards.
func (d Dialect) swapQuote(r rune) rune {
	switch r {
	case d.Quote:
		return '"'
	case '"':
		return d.Quote
	}
	return r
}

func (d Dialect) standardQuote() bool { return d.Quote == '"' }
