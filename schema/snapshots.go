package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ClipboardBlocksFormat is the clipboard format carrying serialized blocks.
const ClipboardBlocksFormat = "application/x-replwin-blocks+json"

// ClipboardTextFormat is the plain text clipboard format.
const ClipboardTextFormat = "text/plain"

// MarshalBlocks encodes blocks as a JSON array of {"kind","content"} records.
// Error output adds "error":true.
func MarshalBlocks(blocks []Block) (string, error) {
	if blocks == nil {
		blocks = []Block{}
	}
	data, err := json.Marshal(blocks)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UnmarshalBlocks decodes blocks produced by MarshalBlocks.
// Any malformed input yields an *InvalidDataError.
func UnmarshalBlocks(data string) ([]Block, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.DisallowUnknownFields()
	var blocks []Block
	if err := dec.Decode(&blocks); err != nil {
		return nil, &InvalidDataError{Msg: err.Error(), Err: err}
	}
	if dec.More() {
		err := fmt.Errorf("unexpected data after blocks")
		return nil, &InvalidDataError{Msg: err.Error(), Err: err}
	}
	if blocks == nil {
		err := fmt.Errorf("blocks must be an array")
		return nil, &InvalidDataError{Msg: err.Error(), Err: err}
	}
	for i, block := range blocks {
		if !block.Kind.Valid() {
			err := fmt.Errorf("block %d has unknown kind %d", i, int(block.Kind))
			return nil, &InvalidDataError{Msg: err.Error(), Err: err}
		}
	}
	return blocks, nil
}

// BlocksFromSpans converts spans to their persisted form.
func BlocksFromSpans(spans []Span) []Block {
	blocks := make([]Block, 0, len(spans))
	for _, span := range spans {
		blocks = append(blocks, Block{Kind: span.Kind, Content: span.Text, Error: span.Error})
	}
	return blocks
}

// DataObject holds clipboard content keyed by format.
type DataObject map[string]string

// Text returns the plain text entry.
func (d DataObject) Text() (string, bool) {
	text, ok := d[ClipboardTextFormat]
	return text, ok
}
