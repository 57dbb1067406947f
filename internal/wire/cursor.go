package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	beginArray  = json.Delim('[')
	endArray    = json.Delim(']')
	beginObject = json.Delim('{')
	endObject   = json.Delim('}')
)

// cursor is a token stream with one token of lookahead.
type cursor struct {
	dec      *json.Decoder
	tok      json.Token
	buffered bool
}

func newCursor(r io.Reader) *cursor {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &cursor{dec: dec}
}

func (c *cursor) next() (json.Token, error) {
	if c.buffered {
		tok := c.tok
		c.tok, c.buffered = nil, false
		return tok, nil
	}
	return c.read()
}

func (c *cursor) peek() (json.Token, error) {
	if !c.buffered {
		tok, err := c.read()
		if err != nil {
			return nil, err
		}
		c.tok, c.buffered = tok, true
	}
	return c.tok, nil
}

func (c *cursor) read() (json.Token, error) {
	tok, err := c.dec.Token()
	if err == nil {
		return tok, nil
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return nil, &FormatError{Offset: syntaxErr.Offset, Msg: "malformed JSON", Err: err}
	}
	// Token reports a stream that stops between two tokens as io.EOF
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("read token at offset %d: %w", c.dec.InputOffset(), err)
}

// atArrayEnd reports whether the next token closes the current array
// without consuming it.
func (c *cursor) atArrayEnd() (bool, error) {
	tok, err := c.peek()
	if err != nil {
		return false, err
	}
	return tok == endArray, nil
}

// skipValue consumes one complete value, nested arrays and objects
// included.
func (c *cursor) skipValue() error {
	tok, err := c.next()
	if err != nil {
		return err
	}
	if tok != beginArray && tok != beginObject {
		if _, ok := tok.(json.Delim); ok {
			return c.formatErr("expected value, got %s", describe(tok))
		}
		return nil
	}

	for depth := 1; depth > 0; {
		tok, err = c.next()
		if err != nil {
			return err
		}
		switch tok {
		case beginArray, beginObject:
			depth++
		case endArray, endObject:
			depth--
		}
	}
	return nil
}

func (c *cursor) formatErr(format string, args ...any) error {
	return &FormatError{Offset: c.dec.InputOffset(), Msg: fmt.Sprintf(format, args...)}
}

func describe(tok json.Token) string {
	switch v := tok.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "bool"
	case json.Delim:
		return "'" + v.String() + "'"
	default:
		return fmt.Sprintf("%T", tok)
	}
}
