package frontmatter

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSplit_NoFrontmatter_ReturnsBodyOnly(t *testing.T) {
	input := []byte("# Title\n\nHello\n")

	meta, body, had, _, err := Split(input)
	require.NoError(t, err)
	require.False(t, had)
	require.Empty(t, meta)
	require.Equal(t, input, body)
}

func TestSplit_YAMLFrontmatter_SplitsMetaAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\n---\n# Title\n")

	meta, body, had, _, err := Split(input)
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, []byte("title: Hello\n"), meta)
	require.Equal(t, []byte("# Title\n"), body)
}

func TestSplit_MissingClosingDelimiter_ReturnsError(t *testing.T) {
	input := []byte("---\ntitle: Hello\n# Title\n")

	_, _, had, _, err := Split(input)
	require.Error(t, err)
	require.False(t, had)
	require.True(t, errors.Is(err, ErrMissingClosingDelimiter))
}

func TestSplit_CRLF_SplitsMetaAndBody(t *testing.T) {
	input := []byte("---\r\ntitle: Hello\r\n---\r\n# Title\r\n")

	meta, body, had, style, err := Split(input)
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, "\r\n", style.Newline)
	require.Equal(t, []byte("title: Hello\r\n"), meta)
	require.Equal(t, []byte("# Title\r\n"), body)
}

func TestSplit_EmptyFrontmatterBlock(t *testing.T) {
	input := []byte("---\n---\n# Title\n")

	meta, body, had, _, err := Split(input)
	require.NoError(t, err)
	require.True(t, had)
	require.Empty(t, meta)
	require.Equal(t, []byte("# Title\n"), body)
}

func TestJoin_RoundTrip_ReconstructsOriginalBytes(t *testing.T) {
	cases := [][]byte{
		[]byte("# Title\n\nHello\n"),
		[]byte("---\ntitle: Hello\n---\n# Title\n"),
		[]byte("---\n---\n# Title\n"),
		[]byte("---\r\ntitle: Hello\r\n---\r\n# Title\r\n"),
	}

	for _, input := range cases {
		meta, body, had, style, err := Split(input)
		require.NoError(t, err)

		out := Join(meta, body, had, style)
		require.Equal(t, input, out)
	}
}

func TestDecode_TypedFields(t *testing.T) {
	meta := []byte("title: Hello World\ndate: 2024-03-01\nslug: hello\ntags:\n  - go\n  - blog\ndraft: true\nsummary: A post.\ncustom: 42\n")

	md, err := Decode(meta)
	require.NoError(t, err)
	require.Equal(t, "Hello World", md.Title)
	require.Equal(t, 2024, md.Date.Year())
	require.Equal(t, time.March, md.Date.Month())
	require.Equal(t, "hello", md.Slug)
	require.Equal(t, []string{"go", "blog"}, md.Tags)
	require.True(t, md.Draft)
	require.Equal(t, "A post.", md.Summary)
	require.Contains(t, md.Extra, "custom")
}

func TestDecode_Empty_YieldsZeroMetadata(t *testing.T) {
	md, err := Decode(nil)
	require.NoError(t, err)
	require.Empty(t, md.Title)
	require.True(t, md.Date.IsZero())
	require.Empty(t, md.Tags)
}

func TestDecode_DateFormats(t *testing.T) {
	cases := []string{
		"date: 2024-03-01\n",
		"date: \"2024-03-01T10:30:00\"\n",
		"date: \"2024-03-01T10:30:00Z\"\n",
		"date: \"2024-03-01 10:30:00\"\n",
	}
	for _, c := range cases {
		md, err := Decode([]byte(c))
		require.NoError(t, err, c)
		require.False(t, md.Date.IsZero(), c)
	}
}

func TestDecode_BadDate_ReturnsError(t *testing.T) {
	_, err := Decode([]byte("date: \"next tuesday\"\n"))
	require.Error(t, err)
}

func TestDecode_CategoriesMergeIntoTags(t *testing.T) {
	md, err := Decode([]byte("categories:\n  - meta\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"meta"}, md.Tags)
}
