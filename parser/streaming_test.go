package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockstream/types"
)

// requireSameBlocks compares block lists element by element so that a nil
// list and an empty one are treated alike.
func requireSameBlocks(t *testing.T, want, got []types.MessageBlock, msgAndArgs ...interface{}) {
	t.Helper()
	require.Equal(t, len(want), len(got), msgAndArgs...)
	for i := range want {
		require.Equal(t, want[i], got[i], msgAndArgs...)
	}
}

func TestParseStreamingCodeFence(t *testing.T) {
	first := ParseStreaming("```py\nprint(")
	assert.Empty(t, first.Blocks)
	assert.Equal(t, &types.CodeBlock{Language: "py", Content: "print("}, first.Partial)

	second := ParseStreaming("```py\nprint(" + "1)\n```")
	requireSameBlocks(t, []types.MessageBlock{
		&types.CodeBlock{Language: "py", Content: "print(1)"},
	}, second.Blocks)
	assert.Nil(t, second.Partial)
}

func TestParseStreamingPartials(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantSettled int
		wantPartial types.MessageBlock
	}{
		{
			name:        "empty",
			input:       "",
			wantPartial: nil,
		},
		{
			name:        "words in flight",
			input:       "Hello wor",
			wantPartial: &types.TextBlock{Content: "Hello wor"},
		},
		{
			name:        "paragraph waits for what follows",
			input:       "Hello\n\n",
			wantPartial: &types.TextBlock{Content: "Hello"},
		},
		{
			name:        "paragraph closed by a heading",
			input:       "Hello\n\n# Next\n",
			wantSettled: 2,
			wantPartial: nil,
		},
		{
			name:        "table header waits for its separator",
			input:       "| a | b |\n",
			wantPartial: &types.TextBlock{Content: "| a | b |"},
		},
		{
			name:        "table rows keep the block open",
			input:       "| a | b |\n|---|---|\n| 1 | 2 |\n",
			wantPartial: &types.TableBlock{Headers: []string{"a", "b"}, Rows: [][]string{{"1", "2"}}},
		},
		{
			name:        "half typed closing fence is not content",
			input:       "```go\nx := 1\n``",
			wantPartial: &types.CodeBlock{Language: "go", Content: "x := 1"},
		},
		{
			name:        "callout waits for its closing marker",
			input:       ":::info\nStill typing\n:::",
			wantPartial: &types.CalloutBlock{Variant: types.CalloutInfo, Content: "Still typing"},
		},
		{
			name:        "heading settles once its line ends",
			input:       "## Title\nBo",
			wantSettled: 1,
			wantPartial: &types.TextBlock{Content: "Bo"},
		},
		{
			name:        "metadata prefix is held back",
			input:       "Hi <!-- THINKING_DA",
			wantPartial: &types.TextBlock{Content: "Hi "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseStreaming(tt.input)
			assert.Len(t, res.Blocks, tt.wantSettled)
			assert.Equal(t, tt.wantPartial, res.Partial)
		})
	}
}

// TestParseStreamingIsStable grows every sample document one byte at a time
// and checks that settled blocks only ever extend, and always form a prefix of
// the final parse.
func TestParseStreamingIsStable(t *testing.T) {
	for d, doc := range sampleDocuments {
		final := Parse(doc)
		var previous []types.MessageBlock

		for k := 0; k <= len(doc); k++ {
			res := ParseStreaming(doc[:k])
			settled := []types.MessageBlock(res.Blocks)

			require.LessOrEqual(t, len(settled), len(final), "doc %d prefix %d", d, k)
			requireSameBlocks(t, final[:len(settled)], settled, "doc %d prefix %d", d, k)

			require.GreaterOrEqual(t, len(settled), len(previous), "doc %d prefix %d", d, k)
			requireSameBlocks(t, previous, settled[:len(previous)], "doc %d prefix %d", d, k)
			previous = settled
		}
	}
}

func TestBlockStateString(t *testing.T) {
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closing_confirmed", StateClosingConfirmed.String())
	assert.Equal(t, "settled", StateSettled.String())
	assert.Equal(t, "unknown", BlockState(7).String())
}
