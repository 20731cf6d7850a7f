package parser

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterComplete(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "thinking payload removed",
			input: `visible<!-- THINKING_DATA:{"x":1}-->more`,
			want:  "visiblemore",
		},
		{
			name:  "action payload with whitespace",
			input: "Answer <!--   ACTION: {\"open\":\"settings\"}   --> done",
			want:  "Answer  done",
		},
		{
			name:  "multiline payload",
			input: "a<!-- THINKING_DATA: {\n  \"steps\": [1, 2]\n} -->b",
			want:  "ab",
		},
		{
			name:  "ordinary comment kept",
			input: "a <!-- just a note --> b",
			want:  "a <!-- just a note --> b",
		},
		{
			name:  "unterminated tag kept",
			input: "text <!-- ACTION: {",
			want:  "text <!-- ACTION: {",
		},
		{
			name:  "several tags",
			input: "<!-- ACTION: 1 -->x<!-- THINKING_DATA: 2 -->y",
			want:  "xy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterComplete(tt.input))
		})
	}
}

// TestFilterEverySplit feeds the input in two and three chunks at every
// possible boundary and checks that no payload byte is ever emitted.
func TestFilterEverySplit(t *testing.T) {
	input := `visible<!-- THINKING_DATA:{"secret":1}-->more`

	for i := 0; i <= len(input); i++ {
		for j := i; j <= len(input); j++ {
			f := NewFilter()
			var out []string
			out = append(out, f.Write(input[:i]))
			out = append(out, f.Write(input[i:j]))
			out = append(out, f.Write(input[j:]))
			out = append(out, f.Flush())

			for _, part := range out {
				assert.NotContains(t, part, "secret", "split at %d/%d", i, j)
			}
			assert.Equal(t, "visiblemore", strings.Join(out, ""), "split at %d/%d", i, j)
			assert.Len(t, f.Metadata(), 1)
		}
	}
}

func TestFilterHoldsPossibleTagStart(t *testing.T) {
	tests := []struct {
		name    string
		chunk   string
		visible string
		pending string
	}{
		{"lone angle bracket", "x <", "x ", "<"},
		{"comment opener", "x <!-", "x ", "<!-"},
		{"keyword prefix", "x <!-- THINK", "x ", "<!-- THINK"},
		{"open tag", "x <!-- ACTION: {\"a\"", "x ", "<!-- ACTION: {\"a\""},
		{"comparison is text", "a < b", "a < b", ""},
		{"other comment is text", "x <!-- hello", "x <!-- hello", ""},
		{"closed other comment", "x <!-- hi --> y", "x <!-- hi --> y", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFilter()
			assert.Equal(t, tt.visible, f.Write(tt.chunk))
			assert.Equal(t, tt.pending, f.Pending())
		})
	}
}

func TestFilterFlushReleasesMalformedTag(t *testing.T) {
	f := NewFilter()

	assert.Equal(t, "text ", f.Write("text <!-- ACTION: {"))
	assert.Equal(t, "", f.Write(`"never":"closed"`))
	assert.Equal(t, `<!-- ACTION: {"never":"closed"`, f.Flush())
	assert.Equal(t, "", f.Flush())
	assert.Empty(t, f.Metadata())
}

func TestFilterCapturesMetadata(t *testing.T) {
	f := NewFilter()
	f.Write(`a<!-- THINKING_DATA: {"x":1} -->b`)
	f.Write(`<!-- ACTION: open settings -->c`)

	captured := f.Metadata()
	require.Len(t, captured, 2)

	assert.Equal(t, KeywordThinking, captured[0].Keyword)
	assert.JSONEq(t, `{"x":1}`, string(captured[0].Payload))

	assert.Equal(t, KeywordAction, captured[1].Keyword)
	var text string
	require.NoError(t, json.Unmarshal(captured[1].Payload, &text))
	assert.Equal(t, "open settings", text)
}

func TestExtractMetadata(t *testing.T) {
	captured := ExtractMetadata(`<!-- ACTION: [1,2] -->`)
	require.Len(t, captured, 1)
	assert.Equal(t, "[1,2]", string(captured[0].Payload))
}

func TestNewTagRecognizerCustomKeywords(t *testing.T) {
	tr, err := NewTagRecognizer("CITATION")
	require.NoError(t, err)

	f := NewFilterWithRecognizer(tr)
	assert.Equal(t, "ab", f.Write("a<!-- CITATION: 3 -->b"))
	assert.Equal(t, "<!-- ACTION: 1 -->", f.Write("<!-- ACTION: 1 -->"))

	_, err = NewTagRecognizer()
	assert.Error(t, err)
}

func TestVisibleTextMatchesFilter(t *testing.T) {
	input := "one <!-- ACTION: {\"go\":true} --> two < three <!-- THINKING_DATA: x"

	for size := 1; size <= 9; size++ {
		f := NewFilter()
		var b strings.Builder
		for i := 0; i < len(input); i += size {
			end := i + size
			if end > len(input) {
				end = len(input)
			}
			b.WriteString(f.Write(input[i:end]))
			assert.Equal(t, VisibleText(input[:end]), b.String(), "chunk size %d at %d", size, end)
		}
	}
}

func TestStripRemovesTagsFormedByRemoval(t *testing.T) {
	input := "<!<!-- ACTION: 1 -->-- THINKING_DATA: {\"secret\":1} -->"

	assert.Equal(t, "", FilterComplete(input))
	captured := ExtractMetadata(input)
	require.Len(t, captured, 2)
	assert.Equal(t, KeywordAction, captured[0].Keyword)
	assert.Equal(t, KeywordThinking, captured[1].Keyword)

	f := NewFilter()
	var out strings.Builder
	for _, chunk := range []string{"<!", "<!-- ACTION: 1 -->", "-- THINKING_DATA: {\"secret\":1} -->"} {
		out.WriteString(f.Write(chunk))
	}
	out.WriteString(f.Flush())
	assert.Equal(t, FilterComplete(input), out.String())
	assert.Len(t, f.Metadata(), 2)

	s := NewSession(nil, "")
	for _, chunk := range []string{"<!", "<!-- ACTION: 1 -->", "-- THINKING_DATA: {\"secret\":1} -->"} {
		s.Feed(chunk)
	}
	assert.Empty(t, s.Finish())
	assert.Empty(t, Parse(input))
}
