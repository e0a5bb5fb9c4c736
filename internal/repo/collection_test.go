package repo

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveCollection_Deterministic(t *testing.T) {
	require.Equal(t, DeriveCollection("user-123"), DeriveCollection("user-123"))
}

func TestDeriveCollection_DistinctOwnersDiffer(t *testing.T) {
	require.NotEqual(t, DeriveCollection("alice"), DeriveCollection("bob"))
}

func TestDeriveCollection_SanitizedCollisionsStayDistinct(t *testing.T) {
	// Both sanitize to "user_1" but the hash suffix keeps them apart.
	require.NotEqual(t, DeriveCollection("user-1"), DeriveCollection("user.1"))
}

func TestDeriveCollection_SafeCharsetAndLength(t *testing.T) {
	valid := regexp.MustCompile(`^rag_[a-z0-9_]+$`)
	owners := []string{"alice@example.com", "UPPER", "数据", strings.Repeat("x", 200)}
	for _, owner := range owners {
		got := DeriveCollection(owner)
		require.True(t, valid.MatchString(got), "bad collection %q for owner %q", got, owner)
		require.LessOrEqual(t, len(got), 128)
	}
}
