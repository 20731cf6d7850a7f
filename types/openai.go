package types

// OpenAIStreamChunk represents one chat completion chunk of an SSE stream
type OpenAIStreamChunk struct {
	ID      string               `json:"id"`
	Object  string               `json:"object"`
	Created int64                `json:"created"`
	Model   string               `json:"model"`
	Choices []OpenAIStreamChoice `json:"choices"`
}

// OpenAIStreamChoice represents streaming response choice
type OpenAIStreamChoice struct {
	Index        int               `json:"index"`
	Delta        OpenAIStreamDelta `json:"delta"`
	FinishReason *string           `json:"finish_reason"`
}

// OpenAIStreamDelta represents streaming delta content
type OpenAIStreamDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// AnthropicStreamEvent represents one event of an Anthropic messages stream.
// Only the fields needed to follow text deltas are decoded.
type AnthropicStreamEvent struct {
	Type  string               `json:"type"`
	Index int                  `json:"index"`
	Delta *AnthropicEventDelta `json:"delta,omitempty"`
}

// AnthropicEventDelta is the delta payload of a content_block_delta event
type AnthropicEventDelta struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}
