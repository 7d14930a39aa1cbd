package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// The goldmark parser is stateless between Parse calls and safe to share.
var markdownParser = goldmark.New(goldmark.WithExtensions(extension.GFM))

// ToMarkdown renders a tree as GitHub-flavored Markdown.
func ToMarkdown(n Node) string {
	if n.Type == TypeDoc {
		return strings.TrimSpace(mdBlocks(n.Content))
	}
	return strings.TrimSpace(mdBlock(n))
}

func mdBlocks(nodes []Node) string {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if s := mdBlock(n); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

func mdBlock(n Node) string {
	switch n.Type {
	case TypeParagraph, TypeTaskItem:
		return mdInline(n.Content)

	case TypeHeading:
		return strings.Repeat("#", n.IntAttr("level", 1)) + " " + mdInline(n.Content)

	case TypeCodeBlock:
		var code strings.Builder
		for _, c := range n.Content {
			code.WriteString(c.Text)
		}
		return "```" + n.Attr("language") + "\n" + code.String() + "\n```"

	case TypeBlockquote:
		return prefixLines(mdBlocks(n.Content), "> ", ">")

	case TypeBulletList, TypeOrderedList:
		start := n.IntAttr("order", 1)
		items := make([]string, 0, len(n.Content))
		for i, item := range n.Content {
			marker := "- "
			if n.Type == TypeOrderedList {
				marker = fmt.Sprintf("%d. ", start+i)
			}
			body := mdListItem(item)
			if body == "" {
				items = append(items, strings.TrimSpace(marker))
				continue
			}
			indent := strings.Repeat(" ", len(marker))
			items = append(items, marker+strings.TrimPrefix(prefixLines(body, indent, ""), indent))
		}
		return strings.Join(items, "\n")

	case TypeRule:
		return "---"

	case TypeTable:
		return mdTable(n)

	case TypeMediaSingle, TypeMediaGroup, TypeMedia:
		return ""

	default:
		if inlineTypes[n.Type] {
			return mdInline([]Node{n})
		}
		return mdBlocks(n.Content)
	}
}

// mdListItem renders item blocks; consecutive paragraphs stay tight.
func mdListItem(item Node) string {
	parts := make([]string, 0, len(item.Content))
	for _, c := range item.Content {
		if s := mdBlock(c); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

func mdTable(n Node) string {
	var rows [][]string
	for _, row := range n.Content {
		cells := make([]string, 0, len(row.Content))
		for _, cell := range row.Content {
			s := strings.ReplaceAll(mdBlocks(cell.Content), "\n", " ")
			cells = append(cells, strings.ReplaceAll(s, "|", `\|`))
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 {
		return ""
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("| ")
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString(" |\n")
	}
	writeRow(rows[0])
	sep := make([]string, len(rows[0]))
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(sep)
	for _, r := range rows[1:] {
		writeRow(r)
	}
	return strings.TrimRight(b.String(), "\n")
}

func mdInline(nodes []Node) string {
	var b strings.Builder
	for _, n := range nodes {
		switch n.Type {
		case TypeText:
			mdText(&b, n)
		case TypeHardBreak:
			b.WriteString("\\\n")
		case TypeMention, TypeEmoji, TypeInlineCard, TypeDate, TypeStatus:
			b.WriteString(inlineAttrText(n))
		default:
			b.WriteString(mdInline(n.Content))
		}
	}
	return b.String()
}

func mdText(b *strings.Builder, n Node) {
	prefix := ""
	suffix := ""

	for _, mark := range n.Marks {
		switch mark.Type {
		case MarkStrong:
			prefix = "**" + prefix
			suffix += "**"
		case MarkEm:
			prefix = "*" + prefix
			suffix += "*"
		case MarkStrike:
			prefix = "~~" + prefix
			suffix += "~~"
		case MarkCode:
			prefix = "`" + prefix
			suffix += "`"
		case MarkLink:
			if href, ok := mark.Attrs["href"].(string); ok {
				prefix = "[" + prefix
				suffix = suffix + "](" + href + ")"
			}
		}
	}

	b.WriteString(prefix)
	b.WriteString(n.Text)
	b.WriteString(suffix)
}

// prefixLines prefixes every line; blank lines get blankPrefix.
func prefixLines(s, prefix, blankPrefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line == "" {
			lines[i] = blankPrefix
		} else {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

// FromMarkdown parses GitHub-flavored Markdown into a document.
func FromMarkdown(md string) Node {
	source := []byte(md)
	root := markdownParser.Parser().Parse(text.NewReader(source))
	return NewDoc(mdToBlocks(root, source)...)
}

func mdToBlocks(parent ast.Node, source []byte) []Node {
	var out []Node
	for child := parent.FirstChild(); child != nil; child = child.NextSibling() {
		out = append(out, mdToBlock(child, source)...)
	}
	return out
}

func mdToBlock(n ast.Node, source []byte) []Node {
	switch node := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		inline := mdToInline(node, source, nil)
		if len(inline) == 0 {
			return nil
		}
		return []Node{Paragraph(inline...)}

	case *ast.Heading:
		return []Node{Heading(node.Level, mdToInline(node, source, nil)...)}

	case *ast.ThematicBreak:
		return []Node{Rule()}

	case *ast.FencedCodeBlock:
		return []Node{CodeBlock(linesText(node, source), string(node.Language(source)))}

	case *ast.CodeBlock:
		return []Node{CodeBlock(linesText(node, source), "")}

	case *ast.HTMLBlock:
		code := linesText(node, source)
		if code == "" {
			return nil
		}
		return []Node{Paragraph(Text(code))}

	case *ast.Blockquote:
		return []Node{Blockquote(mdToBlocks(node, source)...)}

	case *ast.List:
		list := Node{Type: TypeBulletList}
		if node.IsOrdered() {
			list.Type = TypeOrderedList
			if node.Start > 1 {
				list.Attrs = map[string]any{"order": node.Start}
			}
		}
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			list.Content = append(list.Content, ListItem(mdToBlocks(item, source)...))
		}
		return []Node{list}

	case *extast.Table:
		table := Node{Type: TypeTable}
		for row := node.FirstChild(); row != nil; row = row.NextSibling() {
			cellType := TypeTableCell
			if _, ok := row.(*extast.TableHeader); ok {
				cellType = TypeTableHeader
			}
			r := Node{Type: TypeTableRow}
			for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
				c := Node{Type: cellType}
				if inline := mdToInline(cell, source, nil); len(inline) > 0 {
					c.Content = []Node{Paragraph(inline...)}
				} else {
					c.Content = []Node{Paragraph()}
				}
				r.Content = append(r.Content, c)
			}
			table.Content = append(table.Content, r)
		}
		return []Node{table}

	default:
		return mdToBlocks(n, source)
	}
}

func linesText(n ast.Node, source []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		b.Write(line.Value(source))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// mdToInline converts the inline children of n, carrying marks down.
func mdToInline(n ast.Node, source []byte, marks []Mark) []Node {
	var out []Node
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		out = append(out, mdInlineNode(child, source, marks)...)
	}
	return mergeText(out)
}

func mdInlineNode(n ast.Node, source []byte, marks []Mark) []Node {
	switch node := n.(type) {
	case *ast.Text:
		var out []Node
		value := node.Segment.Value(source)
		if node.HardLineBreak() {
			value = bytes.TrimSuffix(value, []byte(`\`))
		}
		if s := string(util.UnescapePunctuations(value)); s != "" {
			out = append(out, markedText(s, marks))
		}
		switch {
		case node.HardLineBreak():
			out = append(out, HardBreak())
		case node.SoftLineBreak():
			out = append(out, markedText(" ", marks))
		}
		return out

	case *ast.String:
		if len(node.Value) == 0 {
			return nil
		}
		return []Node{markedText(string(node.Value), marks)}

	case *ast.CodeSpan:
		var b strings.Builder
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				b.Write(t.Segment.Value(source))
			}
		}
		return []Node{markedText(b.String(), withMark(marks, Mark{Type: MarkCode}))}

	case *ast.Emphasis:
		mark := Mark{Type: MarkEm}
		if node.Level >= 2 {
			mark.Type = MarkStrong
		}
		return mdToInline(node, source, withMark(marks, mark))

	case *extast.Strikethrough:
		return mdToInline(node, source, withMark(marks, Mark{Type: MarkStrike}))

	case *ast.Link:
		return mdToInline(node, source, withMark(marks, linkMark(string(node.Destination))))

	case *ast.Image:
		alt := mdToInline(node, source, withMark(marks, linkMark(string(node.Destination))))
		if len(alt) == 0 {
			return []Node{markedText(string(node.Destination), withMark(marks, linkMark(string(node.Destination))))}
		}
		return alt

	case *ast.AutoLink:
		url := string(node.URL(source))
		return []Node{markedText(string(node.Label(source)), withMark(marks, linkMark(url)))}

	case *ast.RawHTML:
		var b strings.Builder
		for i := 0; i < node.Segments.Len(); i++ {
			seg := node.Segments.At(i)
			b.Write(seg.Value(source))
		}
		return []Node{markedText(b.String(), marks)}

	case *extast.TaskCheckBox:
		if node.IsChecked {
			return []Node{markedText("[x] ", marks)}
		}
		return []Node{markedText("[ ] ", marks)}

	default:
		return mdToInline(n, source, marks)
	}
}

func linkMark(href string) Mark {
	return Mark{Type: MarkLink, Attrs: map[string]any{"href": href}}
}

func withMark(marks []Mark, m Mark) []Mark {
	out := make([]Mark, 0, len(marks)+1)
	out = append(out, marks...)
	return append(out, m)
}

func markedText(s string, marks []Mark) Node {
	n := Text(s)
	if len(marks) > 0 {
		n.Marks = append([]Mark(nil), marks...)
	}
	return n
}

// mergeText joins adjacent text nodes carrying identical marks; the
// Markdown parser splits text at every delimiter candidate.
func mergeText(nodes []Node) []Node {
	out := nodes[:0]
	for _, n := range nodes {
		if last := len(out) - 1; last >= 0 && n.Type == TypeText && out[last].Type == TypeText &&
			sameMarks(out[last].Marks, n.Marks) {
			out[last].Text += n.Text
			continue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func sameMarks(a, b []Mark) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type || a[i].Attr("href") != b[i].Attr("href") {
			return false
		}
	}
	return true
}

// Attr returns a string attribute of the mark, or "".
func (m Mark) Attr(key string) string {
	s, _ := m.Attrs[key].(string)
	return s
}
