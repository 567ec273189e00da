package scan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineReader_StripsTerminators(t *testing.T) {
	r := NewLineReader(strings.NewReader("a\nb\nc\n"))

	var lines []string
	for {
		line, ok := r.Next()
		if !ok {
			break
		}
		lines = append(lines, line)
	}
	require.NoError(t, r.Err())
	require.Equal(t, []string{"a", "b", "c"}, lines)
}

func TestLineReader_FinalLineWithoutTerminator(t *testing.T) {
	withNL := NewLineReader(strings.NewReader("a\nb\n"))
	withoutNL := NewLineReader(strings.NewReader("a\nb"))

	collect := func(r *LineReader) []string {
		var out []string
		for {
			line, ok := r.Next()
			if !ok {
				break
			}
			out = append(out, line)
		}
		return out
	}

	require.Equal(t, collect(withNL), collect(withoutNL))
}

func TestLineReader_NoSpuriousEmptyLineAtTerminatorBoundary(t *testing.T) {
	r := NewLineReader(strings.NewReader("only\n"))

	line, ok := r.Next()
	require.True(t, ok)
	require.Equal(t, "only", line)

	_, ok = r.Next()
	require.False(t, ok)
	require.NoError(t, r.Err())
}

func TestCountIncreases_Basic(t *testing.T) {
	// First value never counts as an increase.
	n, err := CountIncreases(strings.NewReader("1\n2\n3\n"))
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestCountIncreases_EmptyInputReportsMinusOne(t *testing.T) {
	n, err := CountIncreases(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, -1, n)
}

func TestCountIncreases_SingleValueReportsZero(t *testing.T) {
	n, err := CountIncreases(strings.NewReader("42\n"))
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestCountIncreases_EqualValuesAreNotIncreases(t *testing.T) {
	n, err := CountIncreases(strings.NewReader("5\n5\n5\n"))
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestCountIncreases_MixedSequence(t *testing.T) {
	n, err := CountIncreases(strings.NewReader("199\n200\n208\n210\n200\n207\n240\n269\n260\n263\n"))
	require.NoError(t, err)
	require.Equal(t, 7, n)
}

func TestCountIncreases_NegativeNumbers(t *testing.T) {
	n, err := CountIncreases(strings.NewReader("-3\n-2\n-5\n"))
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestCountIncreases_NonIntegerLineAborts(t *testing.T) {
	_, err := CountIncreases(strings.NewReader("1\ntwo\n3\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "two")
}

func TestCountIncreases_TrailingNewlineIrrelevant(t *testing.T) {
	a, err := CountIncreases(strings.NewReader("1\n2\n3"))
	require.NoError(t, err)
	b, err2 := CountIncreases(strings.NewReader("1\n2\n3\n"))
	require.NoError(t, err2)
	require.Equal(t, b, a)
}

func TestCountIncreasesInFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(path, []byte("1\n2\n1\n4\n"), 0o644))

	n, err := CountIncreasesInFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestCountIncreasesInFile_MissingFile(t *testing.T) {
	_, err := CountIncreasesInFile(filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
}
