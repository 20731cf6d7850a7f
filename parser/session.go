package parser

import (
	"strings"

	"blockstream/logger"
	"blockstream/types"
)

// BlockState tracks where a block is in its streaming lifecycle
type BlockState int

const (
	// StateOpen blocks may still change on the next chunk
	StateOpen BlockState = iota
	// StateClosingConfirmed blocks saw their closing condition on the latest chunk
	StateClosingConfirmed
	// StateSettled blocks will never change again
	StateSettled
)

// String returns the string representation of the BlockState
func (s BlockState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosingConfirmed:
		return "closing_confirmed"
	case StateSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// Session holds the streaming parse state of one message. Feed it deltas in
// arrival order; it is not safe for concurrent use.
//
// Settled blocks are never re-derived: each Feed resumes scanning at the line
// after the last settled block, so earlier output is kept verbatim.
type Session struct {
	filter    *Filter
	visible   strings.Builder
	resume    int  // byte offset into visible where scanning restarts
	midLine   bool // the last settled block ended on a line still being written
	settled   []types.MessageBlock
	fresh     int // blocks settled by the latest Feed
	partial   types.MessageBlock
	finished  bool
	log       logger.Logger
	requestID string
}

// NewSession creates an empty session. A nil logger discards output.
func NewSession(log logger.Logger, requestID string) *Session {
	if log == nil {
		log = logger.Nop()
	}
	return &Session{
		filter:    NewFilter(),
		log:       log,
		requestID: requestID,
	}
}

// Feed appends the next delta and returns the updated snapshot. Deltas fed
// after Finish are ignored.
func (s *Session) Feed(delta string) types.StreamResult {
	if s.finished {
		return s.Snapshot()
	}

	before := len(s.filter.captured)
	s.visible.WriteString(s.filter.Write(delta))
	if captured := len(s.filter.captured) - before; captured > 0 {
		s.log.Debug(logger.ComponentFilter, logger.CategoryStreaming, s.requestID, "Metadata stripped from stream", map[string]interface{}{
			"tags": captured,
		})
	}

	s.fresh = 0
	text := s.visible.String()
	if s.midLine {
		idx := strings.IndexByte(text[s.resume:], '\n')
		if idx < 0 {
			s.partial = nil
			return s.Snapshot()
		}
		s.resume += idx + 1
		s.midLine = false
	}

	scanner := newLineScanner(text[s.resume:], false)
	res := scanner.scan()
	if len(res.blocks) > 0 {
		base := len(s.settled)
		s.settled = append(s.settled, res.blocks...)
		s.fresh = len(res.blocks)
		s.midLine = res.settled > scanner.complete
		s.resume += scanner.offset(res.settled)
		for i, b := range res.blocks {
			s.log.Debug(logger.ComponentParser, logger.CategoryStreaming, s.requestID, "Block settled", map[string]interface{}{
				"kind":  b.Kind().String(),
				"index": base + i,
			})
		}
	}

	s.partial = nil
	if res.partialAt >= 0 {
		s.partial = scanner.partial(res.partialAt)
	}
	return s.Snapshot()
}

// Snapshot returns the settled blocks and the current partial block
func (s *Session) Snapshot() types.StreamResult {
	blocks := make(types.Blocks, len(s.settled))
	copy(blocks, s.settled)
	return types.StreamResult{Blocks: blocks, Partial: s.partial}
}

// States reports the lifecycle state of every block in the last snapshot,
// settled blocks first and the partial block, if any, last.
func (s *Session) States() []BlockState {
	states := make([]BlockState, 0, len(s.settled)+1)
	for i := range s.settled {
		if i >= len(s.settled)-s.fresh {
			states = append(states, StateClosingConfirmed)
			continue
		}
		states = append(states, StateSettled)
	}
	if s.partial != nil {
		states = append(states, StateOpen)
	}
	return states
}

// Finish ends the stream: held-back metadata is released as text and every
// open block is closed with the full-text rules. The result equals Parse over
// everything fed. Finish is idempotent.
func (s *Session) Finish() []types.MessageBlock {
	if s.finished {
		return append([]types.MessageBlock(nil), s.settled...)
	}
	s.finished = true

	if rest := s.filter.Flush(); rest != "" {
		s.log.Warn(logger.ComponentFilter, logger.CategoryWarning, s.requestID, "Unterminated metadata tag released as text", map[string]interface{}{
			"length": len(rest),
		})
		s.visible.WriteString(rest)
	}

	text := s.visible.String()
	from := s.resume
	if s.midLine {
		idx := strings.IndexByte(text[from:], '\n')
		if idx < 0 {
			from = len(text)
		} else {
			from += idx + 1
		}
	}

	tail := newLineScanner(text[from:], true).scan().blocks
	s.settled = append(s.settled, tail...)
	s.fresh = len(tail)
	s.partial = nil

	s.log.Debug(logger.ComponentParser, logger.CategoryParse, s.requestID, "Stream finished", map[string]interface{}{
		"blocks":   len(s.settled),
		"metadata": len(s.filter.captured),
	})
	return append([]types.MessageBlock(nil), s.settled...)
}

// Finished reports whether Finish has been called
func (s *Session) Finished() bool {
	return s.finished
}

// Text returns the visible text consumed so far
func (s *Session) Text() string {
	return s.visible.String()
}

// Metadata returns the payloads stripped from the stream so far
func (s *Session) Metadata() []types.Metadata {
	return s.filter.Metadata()
}
