package host

import (
	"errors"
	"io"
	"strings"
)

// Stream hands out the characters of one configuration text.
// Once exhausted every further call reports end of stream.
type Stream struct {
	r        io.RuneReader
	err      error
	consumed int
	done     bool
}

// NewStream reads characters from r.
func NewStream(r io.RuneReader) *Stream {
	return &Stream{r: r}
}

// NewStringStream streams the characters of text.
func NewStringStream(text string) *Stream {
	return NewStream(strings.NewReader(text))
}

// Next consumes and returns the next character.
// It returns false at end of stream, repeatably.
func (s *Stream) Next() (rune, bool) {
	if s.done {
		return 0, false
	}
	c, _, err := s.r.ReadRune()
	if err != nil {
		s.done = true
		if !errors.Is(err, io.EOF) {
			s.err = err
		}
		return 0, false
	}
	s.consumed++
	return c, true
}

// Consumed returns how many characters have been handed out.
func (s *Stream) Consumed() int {
	return s.consumed
}

// Err returns the read error that ended the stream early, if any.
func (s *Stream) Err() error {
	return s.err
}
