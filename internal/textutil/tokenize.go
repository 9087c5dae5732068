// Package textutil holds small text helpers shared by lexical components.
package textutil

import (
	"strings"
	"unicode"
)

// Tokenize lower-cases text and splits it into letter/digit runs.
// Dotted and hyphenated codes such as "03-30-00" or "A-101" split into parts,
// matching how SQLite's unicode61 tokenizer treats them.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// UniqueTerms returns the distinct tokens of text in first-seen order.
func UniqueTerms(text string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, t := range Tokenize(text) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Snippet shortens text to at most n runes on a word boundary.
func Snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	cut := string(r[:n])
	if i := strings.LastIndexByte(cut, ' '); i > n/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
