package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockstream/logger"
	"blockstream/types"
)

func TestSessionCodeFence(t *testing.T) {
	s := NewSession(nil, "req-1")

	first := s.Feed("```py\nprint(")
	assert.Empty(t, first.Blocks)
	assert.Equal(t, &types.CodeBlock{Language: "py", Content: "print("}, first.Partial)

	second := s.Feed("1)\n```")
	requireSameBlocks(t, []types.MessageBlock{
		&types.CodeBlock{Language: "py", Content: "print(1)"},
	}, second.Blocks)
	assert.Nil(t, second.Partial)

	// The closing fence line may still grow; the remainder is not content
	third := s.Feed("  \nAfter")
	require.Len(t, third.Blocks, 1)
	assert.Equal(t, &types.TextBlock{Content: "After"}, third.Partial)

	final := s.Finish()
	requireSameBlocks(t, Parse("```py\nprint(1)\n```  \nAfter"), final)
}

// TestSessionMatchesStatelessParse feeds every sample document in chunks of
// several sizes and checks each snapshot against ParseStreaming over the same
// prefix, and the final result against Parse.
func TestSessionMatchesStatelessParse(t *testing.T) {
	for d, doc := range sampleDocuments {
		for size := 1; size <= 13; size += 3 {
			s := NewSession(logger.Nop(), "")
			for i := 0; i < len(doc); i += size {
				end := i + size
				if end > len(doc) {
					end = len(doc)
				}
				got := s.Feed(doc[i:end])
				want := ParseStreaming(doc[:end])

				requireSameBlocks(t, want.Blocks, got.Blocks, "doc %d size %d at %d", d, size, end)
				require.Equal(t, want.Partial, got.Partial, "doc %d size %d at %d", d, size, end)
			}
			requireSameBlocks(t, Parse(doc), s.Finish(), "doc %d size %d", d, size)
		}
	}
}

func TestSessionStates(t *testing.T) {
	s := NewSession(nil, "")

	s.Feed("Para one\n\n")
	assert.Equal(t, []BlockState{StateOpen}, s.States())

	s.Feed("# Heading\n")
	assert.Equal(t, []BlockState{StateClosingConfirmed, StateClosingConfirmed}, s.States())

	s.Feed("more")
	assert.Equal(t, []BlockState{StateSettled, StateSettled, StateOpen}, s.States())

	s.Finish()
	assert.Equal(t, []BlockState{StateSettled, StateSettled, StateClosingConfirmed}, s.States())
}

func TestSessionStripsMetadata(t *testing.T) {
	s := NewSession(nil, "")
	s.Feed("a<!-- THINK")
	res := s.Feed("ING_DATA: {\"x\":1} -->b")

	assert.Equal(t, "ab", s.Text())
	assert.Equal(t, &types.TextBlock{Content: "ab"}, res.Partial)

	captured := s.Metadata()
	require.Len(t, captured, 1)
	assert.Equal(t, KeywordThinking, captured[0].Keyword)
	assert.JSONEq(t, `{"x":1}`, string(captured[0].Payload))
}

func TestSessionFinishReleasesUnterminatedTag(t *testing.T) {
	log := logger.NewBuffer()
	s := NewSession(log, "req-9")

	res := s.Feed("text <!-- ACTION: {")
	assert.Equal(t, &types.TextBlock{Content: "text "}, res.Partial)

	final := s.Finish()
	requireSameBlocks(t, []types.MessageBlock{
		&types.TextBlock{Content: "text <!-- ACTION: {"},
	}, final)
	assert.Contains(t, log.String(), "Unterminated metadata tag released as text")
	assert.Contains(t, log.String(), "req-9")
}

func TestSessionAfterFinish(t *testing.T) {
	s := NewSession(nil, "")
	s.Feed("# Done\n")
	first := s.Finish()

	assert.True(t, s.Finished())
	res := s.Feed("ignored")
	assert.Len(t, res.Blocks, 1)
	assert.Nil(t, res.Partial)
	requireSameBlocks(t, first, s.Finish())
}
