// Package learn extracts writing-style signals from the difference between
// an AI-proposed draft and the text the owner actually sent, and persists
// them as voice patterns.
package learn

import (
	"strings"
	"unicode"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Delta is the comparison result between a proposed draft and the sent text.
type Delta struct {
	// AddedPhrases are the spans the owner inserted.
	AddedPhrases []string

	// RemovedPhrases are the spans the owner deleted.
	RemovedPhrases []string

	// StyleChanges are human-readable observations (length, greeting,
	// closing preferences).
	StyleChanges []string
}

// Empty reports whether the edit changed nothing.
func (d Delta) Empty() bool {
	return len(d.AddedPhrases) == 0 && len(d.RemovedPhrases) == 0 && len(d.StyleChanges) == 0
}

// String renders the delta for logging.
func (d Delta) String() string {
	var b strings.Builder
	b.WriteString("edit delta:")
	if d.Empty() {
		b.WriteString(" none")
		return b.String()
	}
	for _, p := range d.AddedPhrases {
		b.WriteString("\n  + " + p)
	}
	for _, p := range d.RemovedPhrases {
		b.WriteString("\n  - " + p)
	}
	for _, c := range d.StyleChanges {
		b.WriteString("\n  * " + c)
	}
	return b.String()
}

// Diff computes a word-granularity semantic diff. Words are re-encoded as
// single runes so the character diff operates on whole words, then the
// semantic cleanup pass coalesces fragmented spans; this avoids the noise a
// character diff produces from minor reflowing.
func Diff(original, edited string) []diffmatchpatch.Diff {
	index := make(map[string]rune)
	var tokens []string
	encodedA := encodeWords(splitWords(original), index, &tokens)
	encodedB := encodeWords(splitWords(edited), index, &tokens)

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(encodedA, encodedB, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	for i, d := range diffs {
		var sb strings.Builder
		for _, r := range d.Text {
			sb.WriteString(tokens[runeIndex(r)])
		}
		diffs[i].Text = sb.String()
	}
	return diffs
}

// splitWords tokenizes into words with their trailing whitespace attached,
// so concatenating the tokens reconstructs the input exactly.
func splitWords(s string) []string {
	rs := []rune(s)
	var tokens []string
	i := 0
	for i < len(rs) {
		start := i
		for i < len(rs) && !unicode.IsSpace(rs[i]) {
			i++
		}
		for i < len(rs) && unicode.IsSpace(rs[i]) {
			i++
		}
		tokens = append(tokens, string(rs[start:i]))
	}
	return tokens
}

// encodeWords maps each distinct token to one rune, skipping the surrogate
// range. Texts with more than ~1.1M distinct tokens are out of scope.
func encodeWords(words []string, index map[string]rune, tokens *[]string) string {
	var sb strings.Builder
	for _, w := range words {
		r, ok := index[w]
		if !ok {
			r = tokenRune(len(*tokens))
			index[w] = r
			*tokens = append(*tokens, w)
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func tokenRune(i int) rune {
	r := rune(i + 1)
	if r >= 0xD800 {
		r += 0x800
	}
	return r
}

func runeIndex(r rune) int {
	if r >= 0xE000 {
		return int(r) - 0x800 - 1
	}
	return int(r) - 1
}
