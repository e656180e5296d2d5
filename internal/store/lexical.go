// ABOUTME: Tokenization and normalization for the agent full-text index
// ABOUTME: Produces the tsv column content and escaped FTS5 match queries

package store

import (
	"strings"
	"unicode"
)

// Tokenize lowercases the input and splits it into alphanumeric tokens,
// dropping everything shorter than two characters. The result is the
// normalized token stream stored in agents.tsv and indexed by FTS5.
func Tokenize(texts ...string) []string {
	var tokens []string
	for _, text := range texts {
		fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		for _, f := range fields {
			if len(f) < 2 {
				continue
			}
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// LexicalVector derives the tsv column value from an agent's name and
// frontmatter.
func LexicalVector(name, frontmatter string) string {
	return strings.Join(Tokenize(name, frontmatter), " ")
}

// FTSQuery turns free text into a safe FTS5 match expression: each token is
// quoted and the tokens are OR-ed so partial matches still rank. Returns an
// empty string when the text has no usable tokens.
func FTSQuery(text string) string {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return ""
	}
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = `"` + tok + `"`
	}
	return strings.Join(quoted, " OR ")
}
