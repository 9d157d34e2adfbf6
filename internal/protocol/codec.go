package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Delimiter separates fields of a frame.
const Delimiter = ','

// MaxPayloadLen is the largest MQTT payload the bridge builds.
const MaxPayloadLen = 128

// Cursor walks the fields of a frame body from left to right.
//
// Every decode consumes the field and the delimiter that follows it. A failed
// decode leaves the cursor where it was.
type Cursor struct {
	s   string
	pos int
}

// NewCursor returns a cursor positioned at the start of s.
func NewCursor(s string) *Cursor {
	return &Cursor{s: s}
}

// Done reports whether the whole body has been consumed.
func (c *Cursor) Done() bool {
	return c.pos >= len(c.s)
}

// Rest returns the unconsumed remainder of the body and consumes it.
func (c *Cursor) Rest() string {
	rest := c.s[c.pos:]
	c.pos = len(c.s)
	return rest
}

// Peek returns the unconsumed remainder without consuming it.
func (c *Cursor) Peek() string {
	return c.s[c.pos:]
}

// next returns the field up to dlm and the position after the delimiter.
func (c *Cursor) next(dlm byte) (string, int) {
	rest := c.s[c.pos:]
	if i := strings.IndexByte(rest, dlm); i >= 0 {
		return rest[:i], c.pos + i + 1
	}
	return rest, len(c.s)
}

// Int decodes a non-negative decimal field.
func (c *Cursor) Int() (int, error) {
	if c.Done() {
		return 0, ErrEmpty
	}
	field, end := c.next(Delimiter)
	if field == "" {
		return 0, ErrNoDigits
	}
	for i := 0; i < len(field); i++ {
		if field[i] < '0' || field[i] > '9' {
			return 0, fmt.Errorf("%w: %q", ErrNoDigits, field)
		}
	}
	v, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNoDigits, err)
	}
	c.pos = end
	return v, nil
}

// Code decodes a protocol code field.
func (c *Cursor) Code() (Code, error) {
	v, err := c.Int()
	return Code(v), err
}

// Token decodes a field of at most maxLen bytes ending at dlm or at the end
// of the body. An empty field is returned as an empty string.
func (c *Cursor) Token(maxLen int, dlm byte) (string, error) {
	if c.Done() {
		return "", ErrEmpty
	}
	field, end := c.next(dlm)
	if len(field) > maxLen {
		return "", fmt.Errorf("%w: %d > %d", ErrTokenLength, len(field), maxLen)
	}
	c.pos = end
	return field, nil
}

// ExactToken decodes a comma-terminated field of exactly size bytes. Device
// and module IDs are read this way.
func (c *Cursor) ExactToken(size int) (string, error) {
	if c.Done() {
		return "", ErrEmpty
	}
	field, end := c.next(Delimiter)
	if len(field) != size {
		return "", fmt.Errorf("%w: %q is not %d bytes", ErrTokenLength, field, size)
	}
	c.pos = end
	return field, nil
}

// Encoder is a bounded frame builder. It is reused between frames; callers
// Reset it before building each one and take the result with String.
type Encoder struct {
	buf      []byte
	capacity int
}

// NewEncoder returns an encoder that refuses to grow past capacity bytes.
func NewEncoder(capacity int) *Encoder {
	return &Encoder{
		buf:      make([]byte, 0, capacity),
		capacity: capacity,
	}
}

// Reset empties the encoder.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// Len returns the number of bytes written.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// String returns a copy of the bytes written.
func (e *Encoder) String() string {
	return string(e.buf)
}

// Printf appends a formatted string. When the result would exceed the
// capacity nothing is written and ErrOverflow is returned.
func (e *Encoder) Printf(format string, args ...any) error {
	s := fmt.Sprintf(format, args...)
	if len(e.buf)+len(s) > e.capacity {
		return fmt.Errorf("%w: %d bytes", ErrOverflow, len(e.buf)+len(s))
	}
	e.buf = append(e.buf, s...)
	return nil
}

// Field appends a delimiter, unless the encoder is empty, followed by s.
func (e *Encoder) Field(s string) error {
	if len(e.buf) == 0 {
		return e.Printf("%s", s)
	}
	return e.Printf("%c%s", Delimiter, s)
}

// Frame joins a protocol code and its fields into a body.
func Frame(code Code, fields ...string) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(code)))
	for _, f := range fields {
		b.WriteByte(Delimiter)
		b.WriteString(f)
	}
	return b.String()
}

// ErrorFrame builds an ERROR body carrying code.
func ErrorFrame(code ErrorCode) string {
	return Frame(Error, strconv.Itoa(int(code)))
}

// ChunkList splits tokens into frames of at most maxLen bytes. Every frame
// starts with prefix and lists each token exactly once across all frames, in
// order. A token that cannot fit beside the prefix is placed alone.
func ChunkList(prefix string, tokens []string, maxLen int) []string {
	if len(tokens) == 0 {
		return nil
	}

	var frames []string
	enc := NewEncoder(maxLen)
	start := func() {
		enc.Reset()
		if err := enc.Printf("%s", prefix); err != nil {
			enc.buf = append(enc.buf[:0], prefix...)
		}
	}

	start()
	listed := 0
	for _, tok := range tokens {
		if err := enc.Field(tok); err != nil {
			if listed > 0 {
				frames = append(frames, enc.String())
				start()
				listed = 0
			}
			if err := enc.Field(tok); err != nil {
				enc.buf = append(enc.buf, Delimiter)
				enc.buf = append(enc.buf, tok...)
			}
		}
		listed++
	}
	frames = append(frames, enc.String())
	return frames
}
