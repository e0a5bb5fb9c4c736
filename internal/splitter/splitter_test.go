package splitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplit_ShortTextPassesThrough(t *testing.T) {
	s := New(100, 10, []string{"\n\n", "\n", " "})
	out := s.Split("short text")
	require.Equal(t, []string{"short text"}, out)
}

func TestSplit_EmptyTextYieldsNothing(t *testing.T) {
	s := New(100, 10, []string{"\n\n"})
	require.Empty(t, s.Split("   \n  "))
}

func TestSplit_PrefersSeparatorBoundaries(t *testing.T) {
	s := New(20, 0, []string{"\n\n", "\n", " "})
	text := "first paragraph\n\nsecond paragraph\n\nthird one"
	out := s.Split(text)
	require.Len(t, out, 3)
	require.Equal(t, "first paragraph", out[0])
	require.Equal(t, "second paragraph", out[1])
	require.Equal(t, "third one", out[2])
}

func TestSplit_MergesSmallSegments(t *testing.T) {
	s := New(40, 0, []string{"\n\n"})
	text := "aaa\n\nbbb\n\nccc"
	out := s.Split(text)
	require.Equal(t, []string{"aaa\n\nbbb\n\nccc"}, out)
}

func TestSplit_ChunksNeverExceedSize(t *testing.T) {
	s := New(50, 10, []string{"\n\n", "\n", " "})
	text := strings.Repeat("word ", 200)
	for _, chunk := range s.Split(text) {
		require.LessOrEqual(t, len([]rune(chunk)), 50, "chunk too large: %q", chunk)
	}
}

func TestHardSplit_OverlapCarriesText(t *testing.T) {
	s := New(10, 4, nil)
	out := s.Split("abcdefghijklmnopqrstuvwxyz")
	require.Greater(t, len(out), 2)
	// With step 6 the second window must restart inside the first.
	require.Equal(t, "abcdefghij", out[0])
	require.Equal(t, "ghijklmnop", out[1])
}

func TestSplit_RecursesIntoOversizedSegments(t *testing.T) {
	s := New(30, 0, []string{"\n\n", " "})
	text := "tiny\n\n" + strings.Repeat("x", 80)
	out := s.Split(text)
	require.Greater(t, len(out), 2)
	require.Equal(t, "tiny", out[0])
	for _, chunk := range out {
		require.LessOrEqual(t, len([]rune(chunk)), 30)
	}
}
