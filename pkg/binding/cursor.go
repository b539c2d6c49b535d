package binding

import (
	"encoding/json"
	"io"
)

// cursor is a forward-only pull parser over a JSON document.
type cursor struct {
	dec *json.Decoder
}

func newCursor(r io.Reader) *cursor {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &cursor{dec: dec}
}

// next returns the next token.
func (c *cursor) next() (json.Token, error) {
	return c.dec.Token()
}

// more reports whether the current array or object has another element.
func (c *cursor) more() bool {
	return c.dec.More()
}

// offset returns the input offset of the next token.
func (c *cursor) offset() int64 {
	return c.dec.InputOffset()
}

// skip consumes the next complete value, whatever its shape.
func (c *cursor) skip() error {
	tok, err := c.next()
	if err != nil {
		return err
	}
	return c.skipFrom(tok)
}

// skipFrom consumes the rest of a value whose first token was already read.
// Nesting is tracked with a depth counter rather than recursion.
func (c *cursor) skipFrom(tok json.Token) error {
	depth := 0
	for {
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
		if depth <= 0 {
			return nil
		}

		var err error
		tok, err = c.next()
		if err != nil {
			return err
		}
	}
}

// expect consumes the next token and checks that it is delim.
func (c *cursor) expect(delim json.Delim) error {
	tok, err := c.next()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != delim {
		return &unexpectedTokenError{want: delim, got: tok}
	}
	return nil
}

type unexpectedTokenError struct {
	want json.Delim
	got  json.Token
}

func (e *unexpectedTokenError) Error() string {
	return "expected " + e.want.String() + ", got " + describeToken(e.got)
}

func isDelim(tok json.Token, delim json.Delim) bool {
	d, ok := tok.(json.Delim)
	return ok && d == delim
}

func describeToken(tok json.Token) string {
	switch v := tok.(type) {
	case nil:
		return "null"
	case json.Delim:
		return v.String()
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return "value"
	}
}
