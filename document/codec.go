package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned when a payload is neither a document object, a
// JSON string, nor null.
var ErrMalformed = errors.New("malformed document payload")

// Parse decodes a rich-text field as returned by the tracker.
//
// A JSON object is decoded and validated as a document tree. A JSON
// string is treated as plain text (v2 fields and legacy payloads). Null or
// an empty payload yields an empty document.
func Parse(raw []byte) (Node, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return NewDoc(), nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Node{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return FromPlainText(s), nil
	case '{':
		var n Node
		if err := json.Unmarshal(raw, &n); err != nil {
			return Node{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		n = normalize(n)
		if err := Validate(n); err != nil {
			return Node{}, err
		}
		return n, nil
	default:
		return Node{}, fmt.Errorf("%w: unexpected %q", ErrMalformed, raw[0])
	}
}

// Serialize encodes a tree in the tracker's wire format. It is the inverse
// of Parse for parsed trees.
func Serialize(n Node) (json.RawMessage, error) {
	if err := Validate(n); err != nil {
		return nil, err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("serialize document: %w", err)
	}
	return data, nil
}

// normalize drops empty collections and fields that only apply to other
// node types, so parse(serialize(t)) reproduces t exactly.
func normalize(n Node) Node {
	if len(n.Attrs) == 0 {
		n.Attrs = nil
	}
	if len(n.Marks) == 0 {
		n.Marks = nil
	}
	for i := range n.Marks {
		if len(n.Marks[i].Attrs) == 0 {
			n.Marks[i].Attrs = nil
		}
	}
	if n.Type == TypeDoc {
		if n.Version == 0 {
			n.Version = CurrentVersion
		}
	} else {
		n.Version = 0
	}
	if len(n.Content) == 0 {
		n.Content = nil
		return n
	}
	for i := range n.Content {
		n.Content[i] = normalize(n.Content[i])
	}
	return n
}
