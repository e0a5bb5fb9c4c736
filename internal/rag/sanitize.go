package rag

import (
	"regexp"
	"strings"
)

var elisionRegex = regexp.MustCompile(`(\b[ldjstnmc]|qu)'`)

// NormalizeQuery lowercases the query and expands French elisions
// ("l'index" -> "l index") so lexical matching inside the vector store
// behaves consistently.
func NormalizeQuery(query string) string {
	lowered := strings.ToLower(strings.TrimSpace(query))
	return elisionRegex.ReplaceAllString(lowered, "$1 ")
}
