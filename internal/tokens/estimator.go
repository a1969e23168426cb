// Package tokens approximates token counts for budget accounting.
package tokens

// Estimate maps text to an approximate token count: one token per four
// characters, rounded up. This trades tokenizer precision for O(1)
// evaluation; the context builder only needs a stable upper-bound-ish
// figure, not an exact one.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
