package document

// NewDoc creates a document root holding blocks.
func NewDoc(blocks ...Node) Node {
	return Node{Type: TypeDoc, Version: CurrentVersion, Content: blocks}
}

// Paragraph creates a paragraph of inline nodes.
func Paragraph(inline ...Node) Node {
	return Node{Type: TypeParagraph, Content: inline}
}

// Text creates a plain text node.
func Text(s string) Node {
	return Node{Type: TypeText, Text: s}
}

// HardBreak creates a line break within a paragraph.
func HardBreak() Node {
	return Node{Type: TypeHardBreak}
}

// Heading creates a heading; level is clamped to 1..6.
func Heading(level int, inline ...Node) Node {
	level = max(1, min(level, 6))
	return Node{
		Type:    TypeHeading,
		Attrs:   map[string]any{"level": level},
		Content: inline,
	}
}

// CodeBlock creates a code block. An empty language is omitted.
func CodeBlock(code, language string) Node {
	n := Node{Type: TypeCodeBlock}
	if language != "" {
		n.Attrs = map[string]any{"language": language}
	}
	if code != "" {
		n.Content = []Node{Text(code)}
	}
	return n
}

// Blockquote creates a quote of blocks.
func Blockquote(blocks ...Node) Node {
	return Node{Type: TypeBlockquote, Content: blocks}
}

// Rule creates a horizontal rule.
func Rule() Node {
	return Node{Type: TypeRule}
}

// ListItem creates a list item of blocks.
func ListItem(blocks ...Node) Node {
	return Node{Type: TypeListItem, Content: blocks}
}

// BulletList creates a bullet list with one paragraph item per string.
func BulletList(items ...string) Node {
	return Node{Type: TypeBulletList, Content: textItems(items)}
}

// OrderedList creates an ordered list with one paragraph item per string.
func OrderedList(items ...string) Node {
	return Node{Type: TypeOrderedList, Content: textItems(items)}
}

func textItems(items []string) []Node {
	out := make([]Node, len(items))
	for i, item := range items {
		out[i] = ListItem(Paragraph(Text(item)))
	}
	return out
}

// WithMark returns a text node with a mark applied.
func WithMark(text, markType string, attrs map[string]any) Node {
	mark := Mark{Type: markType}
	if attrs != nil {
		mark.Attrs = attrs
	}
	return Node{
		Type:  TypeText,
		Text:  text,
		Marks: []Mark{mark},
	}
}

// Bold creates bold text.
func Bold(text string) Node {
	return WithMark(text, MarkStrong, nil)
}

// Italic creates italic text.
func Italic(text string) Node {
	return WithMark(text, MarkEm, nil)
}

// Code creates inline code text.
func Code(text string) Node {
	return WithMark(text, MarkCode, nil)
}

// Link creates linked text.
func Link(text, url string) Node {
	return WithMark(text, MarkLink, map[string]any{"href": url})
}

// Strike creates struck-through text.
func Strike(text string) Node {
	return WithMark(text, MarkStrike, nil)
}

// Mention creates a user mention.
func Mention(accountID, display string) Node {
	attrs := map[string]any{"id": accountID}
	if display != "" {
		attrs["text"] = "@" + display
	}
	return Node{Type: TypeMention, Attrs: attrs}
}
