package document

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidDocument matches every *ValidationError.
var ErrInvalidDocument = errors.New("invalid document")

// ValidationError locates a structural violation in a tree.
type ValidationError struct {
	// Path addresses the node, e.g. "content[2].content[0]".
	Path   string
	Type   string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	path := e.Path
	if path == "" {
		path = "(root)"
	}
	return fmt.Sprintf("invalid document at %s (%s): %s", path, e.Type, e.Reason)
}

// Is reports whether target is ErrInvalidDocument.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidDocument
}

var (
	inlineTypes = set(TypeText, TypeHardBreak, TypeMention, TypeEmoji, TypeInlineCard,
		TypeDate, TypeStatus, TypeMediaInline)

	blockTypes = set(TypeParagraph, TypeHeading, TypeBulletList, TypeOrderedList,
		TypeCodeBlock, TypeBlockquote, TypeRule, TypePanel, TypeExpand, TypeTable,
		TypeMediaSingle, TypeMediaGroup, TypeTaskList, TypeBlockCard)

	listTypes = set(TypeBulletList, TypeOrderedList)

	// allowedChildren lists the permitted child types of each known
	// container. Types missing from the table are leaves.
	allowedChildren = map[string]map[string]bool{
		TypeDoc:         blockTypes,
		TypeParagraph:   inlineTypes,
		TypeHeading:     inlineTypes,
		TypeBulletList:  set(TypeListItem),
		TypeOrderedList: set(TypeListItem),
		TypeListItem:    union(set(TypeParagraph, TypeCodeBlock, TypeMediaSingle), listTypes),
		TypeCodeBlock:   set(TypeText),
		TypeBlockquote:  union(set(TypeParagraph, TypeCodeBlock, TypeMediaGroup, TypeMediaSingle), listTypes),
		TypePanel:       union(set(TypeParagraph, TypeHeading, TypeCodeBlock, TypeRule, TypeBlockCard, TypeMediaGroup, TypeMediaSingle), listTypes),
		TypeExpand:      without(blockTypes, TypeExpand),
		TypeTable:       set(TypeTableRow),
		TypeTableRow:    set(TypeTableHeader, TypeTableCell),
		TypeTableHeader: without(blockTypes, TypeTable, TypeExpand),
		TypeTableCell:   without(blockTypes, TypeTable, TypeExpand),
		TypeMediaSingle: set(TypeMedia),
		TypeMediaGroup:  set(TypeMedia),
		TypeTaskList:    set(TypeTaskItem, TypeTaskList),
		TypeTaskItem:    inlineTypes,
	}

	leafTypes = set(TypeText, TypeHardBreak, TypeRule, TypeMention, TypeEmoji,
		TypeInlineCard, TypeBlockCard, TypeDate, TypeStatus, TypeMedia, TypeMediaInline)
)

// Known reports whether the package understands a node type. Unknown
// types are treated as opaque extension nodes.
func Known(nodeType string) bool {
	_, container := allowedChildren[nodeType]
	return container || leafTypes[nodeType]
}

// Validate checks that n is a document root and that every known node
// only contains children its type permits. Text and marks belong to text
// nodes only; on the root they would not survive serialization. Unknown node types are
// accepted anywhere and their subtrees are not inspected.
func Validate(n Node) error {
	if n.Type != TypeDoc {
		return &ValidationError{Type: n.Type, Reason: "root must be " + TypeDoc}
	}
	return validateNode(n, "")
}

func validateNode(n Node, path string) error {
	if n.Type == "" {
		return &ValidationError{Path: path, Reason: "missing type"}
	}
	if !Known(n.Type) {
		return nil
	}

	switch n.Type {
	case TypeHeading:
		if level := n.IntAttr("level", 1); level < 1 || level > 6 {
			return &ValidationError{Path: path, Type: n.Type, Reason: "level must be 1-6, got " + strconv.Itoa(level)}
		}
	case TypeText:
		if len(n.Content) > 0 {
			return &ValidationError{Path: path, Type: n.Type, Reason: "text nodes cannot have content"}
		}
		return nil
	}

	if len(n.Marks) > 0 {
		return &ValidationError{Path: path, Type: n.Type, Reason: "marks are only allowed on text"}
	}
	if n.Text != "" {
		return &ValidationError{Path: path, Type: n.Type, Reason: "text is only allowed on text nodes"}
	}

	allowed, container := allowedChildren[n.Type]
	if !container {
		if len(n.Content) > 0 {
			return &ValidationError{Path: path, Type: n.Type, Reason: "leaf node cannot have content"}
		}
		return nil
	}

	for i, child := range n.Content {
		childPath := joinPath(path, i)
		if Known(child.Type) && !allowed[child.Type] {
			return &ValidationError{
				Path:   childPath,
				Type:   child.Type,
				Reason: fmt.Sprintf("not allowed inside %s", n.Type),
			}
		}
		if err := validateNode(child, childPath); err != nil {
			return err
		}
	}
	return nil
}

func joinPath(parent string, i int) string {
	var b strings.Builder
	if parent != "" {
		b.WriteString(parent)
		b.WriteByte('.')
	}
	b.WriteString("content[")
	b.WriteString(strconv.Itoa(i))
	b.WriteByte(']')
	return b.String()
}

func set(types ...string) map[string]bool {
	m := make(map[string]bool, len(types))
	for _, t := range types {
		m[t] = true
	}
	return m
}

func union(a, b map[string]bool) map[string]bool {
	m := make(map[string]bool, len(a)+len(b))
	for t := range a {
		m[t] = true
	}
	for t := range b {
		m[t] = true
	}
	return m
}

func without(a map[string]bool, drop ...string) map[string]bool {
	m := union(a, nil)
	for _, t := range drop {
		delete(m, t)
	}
	return m
}
