package document

import (
	"encoding/json"
	"strings"
)

// ToPlainText flattens a tree to text. Blocks end with a newline, hard
// breaks become newlines, table cells are tab-separated, and inline nodes
// such as mentions render from their attributes.
func ToPlainText(n Node) string {
	var b strings.Builder
	writePlain(&b, n)
	return strings.TrimRight(b.String(), "\n")
}

func writePlain(b *strings.Builder, n Node) {
	switch n.Type {
	case TypeText:
		b.WriteString(n.Text)
	case TypeHardBreak:
		b.WriteByte('\n')
	case TypeMention, TypeEmoji, TypeInlineCard, TypeBlockCard, TypeDate, TypeStatus:
		b.WriteString(inlineAttrText(n))
		if n.Type == TypeBlockCard {
			endLine(b)
		}
	case TypeRule:
		endLine(b)
		b.WriteString("---\n")
	case TypeTableRow:
		for i, cell := range n.Content {
			if i > 0 {
				b.WriteByte('\t')
			}
			var cb strings.Builder
			for _, c := range cell.Content {
				writePlain(&cb, c)
			}
			b.WriteString(strings.ReplaceAll(strings.TrimRight(cb.String(), "\n"), "\n", " "))
		}
		b.WriteByte('\n')
	default:
		for _, c := range n.Content {
			writePlain(b, c)
		}
		if !inlineTypes[n.Type] {
			endLine(b)
		}
	}
}

func endLine(b *strings.Builder) {
	s := b.String()
	if len(s) > 0 && s[len(s)-1] != '\n' {
		b.WriteByte('\n')
	}
}

// inlineAttrText renders attribute-only inline nodes.
func inlineAttrText(n Node) string {
	switch n.Type {
	case TypeMention:
		if t := n.Attr("text"); t != "" {
			return t
		}
		return "@" + n.Attr("id")
	case TypeEmoji:
		if t := n.Attr("text"); t != "" {
			return t
		}
		return n.Attr("shortName")
	case TypeInlineCard, TypeBlockCard:
		return n.Attr("url")
	case TypeDate:
		return n.Attr("timestamp")
	case TypeStatus:
		return n.Attr("text")
	}
	return ""
}

// FromPlainText builds a document from text. If s is itself a serialized
// document it is parsed as one; otherwise the result is a single
// paragraph whose lines are joined by hard breaks.
func FromPlainText(s string) Node {
	if trimmed := strings.TrimSpace(s); strings.HasPrefix(trimmed, "{") {
		var probe struct {
			Type string `json:"type"`
		}
		if json.Unmarshal([]byte(trimmed), &probe) == nil && probe.Type == TypeDoc {
			if n, err := Parse([]byte(trimmed)); err == nil {
				return n
			}
		}
	}

	s = strings.ReplaceAll(s, "\r\n", "\n")
	if strings.TrimSpace(s) == "" {
		return NewDoc()
	}

	var inline []Node
	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			inline = append(inline, HardBreak())
		}
		if line != "" {
			inline = append(inline, Text(line))
		}
	}
	return NewDoc(Paragraph(inline...))
}
