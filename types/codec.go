package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalBlock encodes a block as a JSON object with a "type" discriminator
func MarshalBlock(b MessageBlock) ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	body, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s block: %w", b.Kind(), err)
	}

	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	kind, _ := json.Marshal(b.Kind().String())
	buf.Write(kind)
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 2 {
		buf.WriteByte(',')
		buf.Write(trimmed[1 : len(trimmed)-1])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalBlock decodes a block produced by MarshalBlock
func UnmarshalBlock(data []byte) (MessageBlock, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to read block type: %w", err)
	}
	kind, ok := ParseBlockKind(head.Type)
	if !ok {
		return nil, fmt.Errorf("unknown block type %q", head.Type)
	}
	b, err := NewBlock(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, b); err != nil {
		return nil, fmt.Errorf("failed to decode %s block: %w", kind, err)
	}
	return b, nil
}

// Blocks is an ordered block list with discriminated JSON encoding
type Blocks []MessageBlock

// MarshalJSON implements json.Marshaler
func (bs Blocks) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, b := range bs {
		if i > 0 {
			buf.WriteByte(',')
		}
		data, err := MarshalBlock(b)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (bs *Blocks) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Blocks, 0, len(raw))
	for _, item := range raw {
		b, err := UnmarshalBlock(item)
		if err != nil {
			return err
		}
		out = append(out, b)
	}
	*bs = out
	return nil
}

// StreamResult is what the streaming parser exposes after each chunk: the
// settled blocks and at most one in-progress block.
type StreamResult struct {
	Blocks  Blocks       `json:"blocks"`
	Partial MessageBlock `json:"-"`
}

// MarshalJSON implements json.Marshaler; the partial block is emitted as
// "partialBlock" and omitted when there is none.
func (r StreamResult) MarshalJSON() ([]byte, error) {
	blocks := r.Blocks
	if blocks == nil {
		blocks = Blocks{}
	}
	out := struct {
		Blocks  Blocks          `json:"blocks"`
		Partial json.RawMessage `json:"partialBlock,omitempty"`
	}{Blocks: blocks}
	if r.Partial != nil {
		data, err := MarshalBlock(r.Partial)
		if err != nil {
			return nil, err
		}
		out.Partial = data
	}
	return json.Marshal(out)
}

// Metadata is an out-of-band payload removed from the visible stream
type Metadata struct {
	Keyword string          `json:"keyword"`
	Payload json.RawMessage `json:"payload"`
}
