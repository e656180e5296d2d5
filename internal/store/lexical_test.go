// ABOUTME: Tests for lexical vector normalization
// ABOUTME: Covers tokenization, case folding, and frontmatter flattening

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tokens := Tokenize("Refund-Agent v2", "handles refunds, chargebacks & disputes!")
	assert.Equal(t, []string{"refund", "agent", "v2", "handles", "refunds", "chargebacks", "disputes"}, tokens)
}

func TestTokenize_DropsSingleCharacters(t *testing.T) {
	tokens := Tokenize("a b agent c")
	assert.Equal(t, []string{"agent"}, tokens)
}

func TestTokenize_Empty(t *testing.T) {
	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("!!! ??? ..."))
}

func TestLexicalVector(t *testing.T) {
	tsv := LexicalVector("Refund Agent", "handles refunds")
	assert.Equal(t, "refund agent handles refunds", tsv)
}

func TestFTSQuery(t *testing.T) {
	assert.Equal(t, `"refund" OR "agent"`, FTSQuery("refund agent"))
	assert.Equal(t, "", FTSQuery("!!!"))
}

func TestFTSQuery_EscapesPunctuation(t *testing.T) {
	// FTS5 operators in user input must not leak into the match expression.
	q := FTSQuery(`refund" OR NOT (agent)`)
	assert.Equal(t, `"refund" OR "or" OR "not" OR "agent"`, q)
}
