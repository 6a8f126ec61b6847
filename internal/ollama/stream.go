package ollama

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

const maxStreamLine = 1 << 20

// ErrStreamClosed is returned by Recv after Close.
var ErrStreamClosed = errors.New("stream closed")

// Stream yields the text fragments of a streaming generate reply, one Recv
// at a time. It ends with io.EOF after a chunk with done=true or when the
// body ends, and cannot be restarted. Malformed lines are skipped.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
	closed  bool
	skipped int
}

func NewStream(body io.ReadCloser) *Stream {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxStreamLine)
	return &Stream{body: body, scanner: sc}
}

// Recv returns the next non-empty fragment.
func (s *Stream) Recv() (string, error) {
	if s.closed {
		return "", ErrStreamClosed
	}
	if s.done {
		return "", io.EOF
	}

	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		line = strings.TrimPrefix(line, "data: ")
		if line == "" {
			continue
		}
		if !gjson.Valid(line) {
			s.skipped++
			continue
		}

		if gjson.Get(line, "done").Bool() {
			s.done = true
		}
		if res := gjson.Get(line, "response"); res.Type == gjson.String && res.Str != "" {
			return res.Str, nil
		}
		if s.done {
			return "", io.EOF
		}
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// Collect drains the stream into one string.
func (s *Stream) Collect() (string, error) {
	var b strings.Builder
	for {
		text, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(text)
	}
}

// Skipped is the number of malformed lines seen so far.
func (s *Stream) Skipped() int { return s.skipped }

func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
