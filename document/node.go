// Package document is the rich-text tree used for issue descriptions and
// comment bodies (Atlassian Document Format on Jira Cloud).
//
// A document is a recursive Node tree rooted at a "doc" node. The package
// parses and serializes the wire JSON, validates parent/child structure,
// and converts to and from plain text, Markdown and Jira wiki markup.
//
// Node types this package does not know are kept as opaque extension
// nodes: they survive a parse/serialize round trip and are accepted under
// any parent.
package document

import (
	"encoding/json"
	"reflect"
)

// Node types.
const (
	TypeDoc         = "doc"
	TypeParagraph   = "paragraph"
	TypeText        = "text"
	TypeHardBreak   = "hardBreak"
	TypeHeading     = "heading"
	TypeBulletList  = "bulletList"
	TypeOrderedList = "orderedList"
	TypeListItem    = "listItem"
	TypeCodeBlock   = "codeBlock"
	TypeBlockquote  = "blockquote"
	TypeRule        = "rule"
	TypeMention     = "mention"
	TypeEmoji       = "emoji"
	TypeInlineCard  = "inlineCard"
	TypeBlockCard   = "blockCard"
	TypeDate        = "date"
	TypeStatus      = "status"
	TypePanel       = "panel"
	TypeExpand      = "expand"
	TypeTable       = "table"
	TypeTableRow    = "tableRow"
	TypeTableHeader = "tableHeader"
	TypeTableCell   = "tableCell"
	TypeMediaSingle = "mediaSingle"
	TypeMediaGroup  = "mediaGroup"
	TypeMedia       = "media"
	TypeMediaInline = "mediaInline"
	TypeTaskList    = "taskList"
	TypeTaskItem    = "taskItem"
)

// Mark types.
const (
	MarkStrong    = "strong"
	MarkEm        = "em"
	MarkStrike    = "strike"
	MarkCode      = "code"
	MarkUnderline = "underline"
	MarkLink      = "link"
	MarkTextColor = "textColor"
	MarkSubSup    = "subsup"
)

// CurrentVersion is the document format version written on root nodes.
const CurrentVersion = 1

// Node is one element of a document tree.
type Node struct {
	Type    string         `json:"type"`
	Version int            `json:"version,omitempty"`
	Text    string         `json:"text,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
	Content []Node         `json:"content,omitempty"`
}

// Mark is formatting applied to a text node.
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// MarshalJSON always writes a content array on the root node, which the
// tracker requires even for empty documents.
func (n Node) MarshalJSON() ([]byte, error) {
	type plain Node
	if n.Type != TypeDoc {
		return json.Marshal(plain(n))
	}
	content := n.Content
	if content == nil {
		content = []Node{}
	}
	version := n.Version
	if version == 0 {
		version = CurrentVersion
	}
	return json.Marshal(struct {
		Type    string         `json:"type"`
		Version int            `json:"version"`
		Attrs   map[string]any `json:"attrs,omitempty"`
		Content []Node         `json:"content"`
	}{n.Type, version, n.Attrs, content})
}

// IsEmpty reports whether the tree carries no text or leaf content.
func (n Node) IsEmpty() bool {
	switch n.Type {
	case TypeText:
		return n.Text == ""
	case TypeDoc, TypeParagraph, TypeHeading, TypeBlockquote,
		TypeBulletList, TypeOrderedList, TypeListItem, TypeCodeBlock:
		for _, c := range n.Content {
			if !c.IsEmpty() {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// HasMark reports whether the node carries a mark of the given type.
func (n Node) HasMark(markType string) bool {
	for _, m := range n.Marks {
		if m.Type == markType {
			return true
		}
	}
	return false
}

// Attr returns a string attribute, or "".
func (n Node) Attr(key string) string {
	s, _ := n.Attrs[key].(string)
	return s
}

// IntAttr returns a numeric attribute whether it was decoded from JSON
// (float64) or built in code (int).
func (n Node) IntAttr(key string, def int) int {
	switch v := n.Attrs[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
	}
	return def
}

// Equal reports whether two trees are structurally equal. Nil and empty
// collections compare equal, and numeric attributes compare by value.
func Equal(a, b Node) bool {
	return reflect.DeepEqual(canonical(a), canonical(b))
}

// canonical returns a copy with collections normalized for comparison.
func canonical(n Node) Node {
	out := Node{Type: n.Type, Version: n.Version, Text: n.Text}
	if len(n.Attrs) > 0 {
		out.Attrs = normalizeAttrs(n.Attrs)
	}
	for _, m := range n.Marks {
		cm := Mark{Type: m.Type}
		if len(m.Attrs) > 0 {
			cm.Attrs = normalizeAttrs(m.Attrs)
		}
		out.Marks = append(out.Marks, cm)
	}
	for _, c := range n.Content {
		out.Content = append(out.Content, canonical(c))
	}
	return out
}

func normalizeAttrs(attrs map[string]any) map[string]any {
	data, err := json.Marshal(attrs)
	if err != nil {
		return attrs
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return attrs
	}
	return out
}
