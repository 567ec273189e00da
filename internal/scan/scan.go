// Package scan reads line-oriented measurement reports and counts
// strictly increasing transitions.
package scan

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
)

// LineReader yields lines from r with trailing terminators stripped. A final
// line without a terminator is still yielded, and input ending exactly on a
// terminator does not produce a trailing empty line.
type LineReader struct {
	s *bufio.Scanner
}

// NewLineReader wraps r in a LineReader.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{s: bufio.NewScanner(r)}
}

// Next returns the next line. ok is false once the input is exhausted or a
// read error occurred; check Err afterwards.
func (l *LineReader) Next() (line string, ok bool) {
	if !l.s.Scan() {
		return "", false
	}
	return l.s.Text(), true
}

// Err returns the first read error encountered, if any.
func (l *LineReader) Err() error {
	return l.s.Err()
}

// CountIncreases parses every line of r as an integer and counts how often a
// value is strictly greater than its predecessor. The counter starts below
// zero: an empty input reports -1, a single value reports 0, and the first
// value is never counted as an increase. Any non-integer line aborts with an
// error.
func CountIncreases(r io.Reader) (int, error) {
	lines := NewLineReader(r)

	count := -1
	prev := 0
	first := true
	for {
		line, ok := lines.Next()
		if !ok {
			break
		}
		value, err := strconv.Atoi(line)
		if err != nil {
			return 0, fmt.Errorf("line %q is not an integer: %w", line, err)
		}
		if first || value > prev {
			count++
		}
		first = false
		prev = value
	}
	if err := lines.Err(); err != nil {
		return 0, fmt.Errorf("read input: %w", err)
	}
	return count, nil
}

// CountIncreasesInFile opens path and runs CountIncreases over it.
func CountIncreasesInFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return CountIncreases(f)
}
