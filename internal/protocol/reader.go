package protocol

import (
	"bufio"
	"io"
)

const initialLineBuffer = 64 * 1024

// LineReader yields input lines without their terminators. A trailing "\r"
// is stripped so CRLF input behaves like LF input.
type LineReader struct {
	scanner *bufio.Scanner
}

// NewLineReader reads lines of at most maxLineBytes from r. Longer lines
// fail with bufio.ErrTooLong.
func NewLineReader(r io.Reader, maxLineBytes int) *LineReader {
	scanner := bufio.NewScanner(r)
	initial := initialLineBuffer
	if maxLineBytes < initial {
		initial = maxLineBytes
	}
	scanner.Buffer(make([]byte, 0, initial), maxLineBytes)
	scanner.Split(bufio.ScanLines)
	return &LineReader{scanner: scanner}
}

// Next returns the next line, or io.EOF once input is exhausted.
func (r *LineReader) Next() (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
