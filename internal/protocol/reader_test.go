package protocol

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, r *LineReader) []string {
	t.Helper()
	var lines []string
	for {
		line, err := r.Next()
		if err == io.EOF {
			return lines
		}
		require.NoError(t, err)
		lines = append(lines, line)
	}
}

func TestLineReader(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty input", "", nil},
		{"single line", "go\n", []string{"go"}},
		{"blank lines kept", "go\n\n\n", []string{"go", "", ""}},
		{"tab lines kept verbatim", "go\n\tx := 1\n\t\tindented\n", []string{"go", "\tx := 1", "\t\tindented"}},
		{"crlf", "go\r\n\tx\r\n\r\n", []string{"go", "\tx", ""}},
		{"final line without newline", "go\n\tx", []string{"go", "\tx"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewLineReader(strings.NewReader(tt.input), DefaultMaxLineBytes)
			require.Equal(t, tt.want, readAll(t, r))
		})
	}
}

func TestLineReader_TooLong(t *testing.T) {
	input := "go\n\t" + strings.Repeat("x", 100) + "\n"
	r := NewLineReader(strings.NewReader(input), 32)

	line, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, "go", line)

	_, err = r.Next()
	require.ErrorIs(t, err, bufio.ErrTooLong)
}

func TestLineReader_EOFIsSticky(t *testing.T) {
	r := NewLineReader(strings.NewReader("a\n"), DefaultMaxLineBytes)
	_, err := r.Next()
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = r.Next()
		require.ErrorIs(t, err, io.EOF)
	}
}
