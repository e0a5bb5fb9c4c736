package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPages_PlainText(t *testing.T) {
	pages, err := Pages("notes.txt", "fp1", []byte("  hello world  "))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Equal(t, "hello world", pages[0].Content)
	require.Equal(t, "notes.txt", pages[0].Source)
	require.Equal(t, "fp1", pages[0].Fingerprint)
	require.Equal(t, 1, pages[0].Page)
}

func TestPages_EmptyTextYieldsNoPages(t *testing.T) {
	pages, err := Pages("empty.txt", "fp", []byte("   \n  "))
	require.NoError(t, err)
	require.Empty(t, pages)
}

func TestPages_UnsupportedExtension(t *testing.T) {
	_, err := Pages("image.png", "fp", []byte{0x89, 0x50})
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestPages_MarkdownHeadingsAndCode(t *testing.T) {
	src := "# Title\n\nSome body text.\n\n## Section\n\n```\ncode here\n```\n"
	pages, err := Pages("doc.md", "fp", []byte(src))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Contains(t, pages[0].Content, "# Title")
	require.Contains(t, pages[0].Content, "## Section")
	require.Contains(t, pages[0].Content, "Some body text.")
	require.Contains(t, pages[0].Content, "code here")
}

func TestPages_MarkdownAltExtension(t *testing.T) {
	pages, err := Pages("doc.markdown", "fp", []byte("plain paragraph"))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Equal(t, "plain paragraph", pages[0].Content)
}
