package pathutil

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize_CleansSegments(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"docs/a.md", "docs/a.md"},
		{"./docs/a.md", "docs/a.md"},
		{"docs//a.md", "docs/a.md"},
		{"/docs/a.md", "docs/a.md"},
		{"docs/sub/../a.md", "docs/a.md"},
		{"docs\\win\\a.md", "docs/win/a.md"},
		{"  docs/a.md  ", "docs/a.md"},
	}
	for _, c := range cases {
		got, err := Normalize(c.in)
		require.NoError(t, err, "input %q", c.in)
		require.Equal(t, c.want, got, "input %q", c.in)
	}
}

func TestNormalize_Traversal_ReturnsError(t *testing.T) {
	for _, in := range []string{"../secrets.md", "docs/../../etc/passwd", "a/../../b.md"} {
		_, err := Normalize(in)
		require.Error(t, err, "input %q", in)
		require.True(t, errors.Is(err, ErrPathTraversal), "input %q", in)
	}
}

func TestNormalize_Empty_ReturnsError(t *testing.T) {
	for _, in := range []string{"", "   ", ".", "./."} {
		_, err := Normalize(in)
		require.ErrorIs(t, err, ErrEmptyPath, "input %q", in)
	}
}

func TestNormalize_TooLong_ReturnsError(t *testing.T) {
	long := strings.Repeat("a", MaxPathLength+1)
	_, err := Normalize(long)
	require.ErrorIs(t, err, ErrPathTooLong)
}

func TestNormalizeDocPath_ExtensionPolicy(t *testing.T) {
	for _, in := range []string{"docs/a.md", "docs/a.MD", "a.mdx", "a.markdown", "notes.txt"} {
		_, err := NormalizeDocPath(in)
		require.NoError(t, err, "input %q", in)
	}
	for _, in := range []string{"docs/a.rst", "binary.png", "Makefile"} {
		_, err := NormalizeDocPath(in)
		require.ErrorIs(t, err, ErrUnsupportedExtension, "input %q", in)
	}
}

func TestNormalize_AppliesNFC(t *testing.T) {
	// "é" as 'e' + combining acute vs precomposed U+00E9.
	decomposed := "docs/café.md"
	precomposed := "docs/café.md"

	a, err := Normalize(decomposed)
	require.NoError(t, err)
	b, err := Normalize(precomposed)
	require.NoError(t, err)
	require.Equal(t, b, a)
}
