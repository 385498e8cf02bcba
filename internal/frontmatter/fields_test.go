package frontmatter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFlat_KeyValuePairs(t *testing.T) {
	fields := ParseFlat([]byte("title: My Doc\nauthor: Someone\n"))
	require.Len(t, fields, 2)

	title, ok := fields.Get("title")
	require.True(t, ok)
	require.Equal(t, "My Doc", title)

	author, ok := fields.Get("author")
	require.True(t, ok)
	require.Equal(t, "Someone", author)
}

func TestParseFlat_StripsMatchingQuotes(t *testing.T) {
	cases := []struct {
		line string
		want string
	}{
		{`title: "Quoted"`, "Quoted"},
		{`title: 'Single'`, "Single"},
		{`title: "Mismatch'`, `"Mismatch'`},
		{`title: "a"`, "a"},
		{`title: ""`, ""},
		{`title: "`, `"`},
	}
	for _, c := range cases {
		fields := ParseFlat([]byte(c.line))
		got, ok := fields.Get("title")
		require.True(t, ok, "line %q", c.line)
		require.Equal(t, c.want, got, "line %q", c.line)
	}
}

func TestParseFlat_SkipsUnparseableLines(t *testing.T) {
	input := "title: T\nnot a pair\n: empty key\nvalid: yes\n"
	fields := ParseFlat([]byte(input))
	require.Len(t, fields, 2)
	require.True(t, fields.Has("title"))
	require.True(t, fields.Has("valid"))
}

func TestParseFlat_ValueWithColon_SplitsAtFirst(t *testing.T) {
	fields := ParseFlat([]byte("url: https://example.com/x\n"))
	got, ok := fields.Get("url")
	require.True(t, ok)
	require.Equal(t, "https://example.com/x", got)
}

func TestParseFlat_CRLFLines(t *testing.T) {
	fields := ParseFlat([]byte("title: T\r\nauthor: A\r\n"))
	require.Len(t, fields, 2)
	got, _ := fields.Get("author")
	require.Equal(t, "A", got)
}

func TestParseFlat_EmptyValue_Kept(t *testing.T) {
	fields := ParseFlat([]byte("draft:\n"))
	got, ok := fields.Get("draft")
	require.True(t, ok)
	require.Equal(t, "", got)
}

func TestFields_FirstOccurrenceWins(t *testing.T) {
	fields := ParseFlat([]byte("title: First\ntitle: Second\n"))
	got, _ := fields.Get("title")
	require.Equal(t, "First", got)

	// Map view keeps the last duplicate, like a YAML decoder would.
	require.Equal(t, "Second", fields.Map()["title"])
}
