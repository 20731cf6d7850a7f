// Package stream follows a server-sent event body from a chat model and
// feeds its text deltas to a streaming block parser.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"blockstream/logger"
	"blockstream/parser"
	"blockstream/types"
)

// event decodes both OpenAI chat chunks and Anthropic message events
type event struct {
	Type    string                     `json:"type"`
	Choices []types.OpenAIStreamChoice `json:"choices"`
	Delta   *types.AnthropicEventDelta `json:"delta,omitempty"`
}

// delta returns the text carried by the event and whether it ends the stream
func (e event) delta() (string, bool) {
	if len(e.Choices) > 0 {
		choice := e.Choices[0]
		return choice.Delta.Content, choice.FinishReason != nil
	}
	switch e.Type {
	case "content_block_delta":
		if e.Delta != nil && e.Delta.Type == "text_delta" {
			return e.Delta.Text, false
		}
	case "message_stop":
		return "", true
	}
	return "", false
}

// Reader consumes SSE bodies
type Reader struct {
	log       logger.Logger
	requestID string
	// OnChunk is called for every data line that carried text
	OnChunk func()
}

// NewReader creates a reader. A nil logger discards output.
func NewReader(log logger.Logger, requestID string) *Reader {
	if log == nil {
		log = logger.Nop()
	}
	return &Reader{log: log, requestID: requestID}
}

// Consume reads body to the end of the stream with a fresh session and
// returns the final blocks.
func (r *Reader) Consume(ctx context.Context, body io.Reader, onSnapshot func(types.StreamResult)) ([]types.MessageBlock, error) {
	session := parser.NewSession(r.log, r.requestID)
	if err := r.ConsumeSession(ctx, session, body, onSnapshot); err != nil {
		return nil, err
	}
	return session.Finish(), nil
}

// ConsumeSession feeds the text deltas of body into session until the stream
// ends. onSnapshot, when set, sees every snapshot in which the settled blocks
// or the partial block changed, including the last one after Finish.
// Malformed data lines are skipped.
func (r *Reader) ConsumeSession(ctx context.Context, session *parser.Session, body io.Reader, onSnapshot func(types.StreamResult)) error {
	scanner := bufio.NewScanner(body)
	// Long deltas arrive as one line
	scanner.Buffer(make([]byte, 64*1024), 1024*1024) // 64KB initial, 1MB max

	var last types.StreamResult
	published := false
	publish := func(res types.StreamResult) {
		if onSnapshot == nil || (published && sameSnapshot(last, res)) {
			return
		}
		last, published = res, true
		onSnapshot(res)
	}

	chunks := 0
	skipped := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stream cancelled: %w", err)
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			break
		}

		var ev event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			skipped++
			r.log.Warn(logger.ComponentStream, logger.CategoryWarning, r.requestID, "Failed to parse streaming chunk", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}

		text, done := ev.delta()
		if text != "" {
			chunks++
			if r.OnChunk != nil {
				r.OnChunk()
			}
			publish(session.Feed(text))
		}
		if done {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		r.log.Error(logger.ComponentStream, logger.CategoryError, r.requestID, "Streaming error", map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Errorf("error reading stream: %w", err)
	}

	final := session.Finish()
	publish(types.StreamResult{Blocks: final})

	r.log.Info(logger.ComponentStream, logger.CategoryStreaming, r.requestID, "Stream consumed", map[string]interface{}{
		"chunks":  chunks,
		"skipped": skipped,
		"blocks":  len(final),
	})
	return nil
}

func sameSnapshot(a, b types.StreamResult) bool {
	if len(a.Blocks) != len(b.Blocks) {
		return false
	}
	if a.Partial == nil || b.Partial == nil {
		return a.Partial == nil && b.Partial == nil
	}
	pa, errA := types.MarshalBlock(a.Partial)
	pb, errB := types.MarshalBlock(b.Partial)
	return errA == nil && errB == nil && bytes.Equal(pa, pb)
}
