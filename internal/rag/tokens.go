package rag

import "strings"

// EstimateTokens approximates the model token count of a text: one token
// per word for latin script plus one per rune for CJK and other wide
// scripts. Budget math multiplies in a safety margin to absorb the
// estimation error.
func EstimateTokens(text string) int {
	count := 0
	for _, r := range text {
		if r > 127 {
			count++
		}
	}
	count += len(strings.Fields(text))
	if count == 0 && len(text) > 0 {
		return 1
	}
	return count
}
