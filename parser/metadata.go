// Package parser turns assistant message text into typed content blocks.
// It strips out-of-band metadata comments, classifies complete messages with
// Parse, and follows a growing stream with ParseStreaming or a Session.
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"blockstream/types"
)

// Metadata keywords recognised inside <!-- KEYWORD: payload --> comments
const (
	KeywordThinking = "THINKING_DATA"
	KeywordAction   = "ACTION"
)

var metadataKeywords = []string{KeywordThinking, KeywordAction}

const commentOpen = "<!--"

// TagRecognizer handles metadata tag pattern recognition
type TagRecognizer struct {
	keywords    []string
	fullPattern *regexp.Regexp
}

// NewTagRecognizer creates a TagRecognizer for the given keywords
func NewTagRecognizer(keywords ...string) (*TagRecognizer, error) {
	if len(keywords) == 0 {
		return nil, fmt.Errorf("at least one metadata keyword is required")
	}
	quoted := make([]string, len(keywords))
	for i, kw := range keywords {
		quoted[i] = regexp.QuoteMeta(kw)
	}

	fullPattern, err := regexp.Compile(`(?s)<!--\s*(` + strings.Join(quoted, "|") + `):(.*?)-->`)
	if err != nil {
		return nil, fmt.Errorf("failed to compile metadata pattern: %w", err)
	}

	return &TagRecognizer{
		keywords:    append([]string(nil), keywords...),
		fullPattern: fullPattern,
	}, nil
}

// Strip removes every complete metadata tag and returns the remaining text
// together with the captured payloads in order of removal. Removing a tag can
// join its neighbours into a new tag, so passes repeat until none is left.
func (tr *TagRecognizer) Strip(text string) (string, []types.Metadata) {
	var captured []types.Metadata
	for {
		stripped, found := tr.stripOnce(text)
		if len(found) == 0 {
			return text, captured
		}
		captured = append(captured, found...)
		text = stripped
	}
}

func (tr *TagRecognizer) stripOnce(text string) (string, []types.Metadata) {
	matches := tr.fullPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	var b strings.Builder
	b.Grow(len(text))
	captured := make([]types.Metadata, 0, len(matches))
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m[0]])
		captured = append(captured, types.Metadata{
			Keyword: text[m[2]:m[3]],
			Payload: payloadJSON(text[m[4]:m[5]]),
		})
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String(), captured
}

// PendingTagStart returns the index of the first position in text where an
// unterminated metadata tag (or a prefix of one) begins, or -1.
func (tr *TagRecognizer) PendingTagStart(text string) int {
	for offset := 0; offset < len(text); {
		idx := strings.IndexByte(text[offset:], '<')
		if idx < 0 {
			return -1
		}
		pos := offset + idx
		if tr.couldBeTag(text[pos:]) {
			return pos
		}
		offset = pos + 1
	}
	return -1
}

// couldBeTag reports whether rest, which starts with '<', is an unterminated
// metadata tag or could still become one once more text arrives.
func (tr *TagRecognizer) couldBeTag(rest string) bool {
	if len(rest) < len(commentOpen) {
		return strings.HasPrefix(commentOpen, rest)
	}
	if !strings.HasPrefix(rest, commentOpen) {
		return false
	}
	if strings.Contains(rest, "-->") {
		// A closed comment that did not match the full pattern is not metadata
		return false
	}
	body := strings.TrimLeft(rest[len(commentOpen):], " \t\r\n")
	if body == "" {
		return true
	}
	for _, kw := range tr.keywords {
		marker := kw + ":"
		if strings.HasPrefix(marker, body) || strings.HasPrefix(body, marker) {
			return true
		}
	}
	return false
}

// payloadJSON keeps valid JSON payloads as-is and wraps anything else as a JSON string
func payloadJSON(raw string) json.RawMessage {
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	quoted, _ := json.Marshal(trimmed)
	return quoted
}

// Package-level default recognizer for the standard keywords
var defaultTagRecognizer *TagRecognizer

func init() {
	var err error
	defaultTagRecognizer, err = NewTagRecognizer(metadataKeywords...)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default tag recognizer: %v", err))
	}
}

// FilterComplete strips metadata tags from already-final text. An
// unterminated tag is left in place as plain text.
func FilterComplete(text string) string {
	stripped, _ := defaultTagRecognizer.Strip(text)
	return stripped
}

// ExtractMetadata returns the payloads of every complete tag in text
func ExtractMetadata(text string) []types.Metadata {
	_, captured := defaultTagRecognizer.Strip(text)
	return captured
}

// Filter removes metadata tags from a chunked stream. It keeps a carry
// buffer so a tag split across chunk boundaries is never emitted. A Filter is
// owned by one stream and is not safe for concurrent use.
type Filter struct {
	recognizer *TagRecognizer
	buffer     string
	captured   []types.Metadata
}

// NewFilter creates a Filter for the standard metadata keywords
func NewFilter() *Filter {
	return &Filter{recognizer: defaultTagRecognizer}
}

// NewFilterWithRecognizer creates a Filter using a custom recognizer
func NewFilterWithRecognizer(tr *TagRecognizer) *Filter {
	return &Filter{recognizer: tr}
}

// Write consumes the next chunk and returns the text that is safe to show
func (f *Filter) Write(chunk string) string {
	combined := f.buffer + chunk
	f.buffer = ""

	stripped, captured := f.recognizer.Strip(combined)
	f.captured = append(f.captured, captured...)

	if pos := f.recognizer.PendingTagStart(stripped); pos >= 0 {
		f.buffer = stripped[pos:]
		return stripped[:pos]
	}
	return stripped
}

// Flush returns whatever is still held back. Call it once when the stream
// ends; a tag that never closed is released as plain text.
func (f *Filter) Flush() string {
	rest := f.buffer
	f.buffer = ""
	return rest
}

// Pending returns the held-back text without consuming it
func (f *Filter) Pending() string {
	return f.buffer
}

// Metadata returns the payloads captured so far
func (f *Filter) Metadata() []types.Metadata {
	return append([]types.Metadata(nil), f.captured...)
}
