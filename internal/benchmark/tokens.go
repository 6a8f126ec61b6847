package benchmark

import (
	"regexp"
	"strings"
)

var (
	punctuationRe = regexp.MustCompile(`[.,!?;:'"()\[\]{}]`)
	numberRe      = regexp.MustCompile(`\d+`)
)

// EstimateTokens approximates a token count as words + punctuation marks +
// standalone numbers. Used only when the host reports no eval counters.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	punctuation := len(punctuationRe.FindAllStringIndex(text, -1))
	numbers := len(numberRe.FindAllStringIndex(text, -1))
	return words + punctuation + numbers
}
