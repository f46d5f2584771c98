// Package sfc splits single-file components into their top-level blocks.
package sfc

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
)

type Position struct {
	Filename string

	// Index is the byte offset, Line and Column are 1-based.
	Index, Line, Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// Block is a top-level block of a component file.
type Block struct {
	Type  string
	Attrs map[string]string

	// Content is the text between the opening and the closing tag.
	Content string

	// Start and End delimit Content in the source (half-open, bytes).
	Start, End int

	// Pos is the position of the opening tag.
	Pos Position

	SelfClosing bool
}

// Lang returns the value of the lang attribute.
func (b Block) Lang() string { return b.Attrs["lang"] }

// Src returns the value of the src attribute.
func (b Block) Src() string { return b.Attrs["src"] }

// Descriptor is a parsed component file.
type Descriptor struct {
	Filename string
	Template *Block
	Script   *Block
	Styles   []Block

	// Custom are all other blocks in source order.
	Custom []Block
}

// CustomBlocks returns the custom blocks of type typ in source order.
func (d *Descriptor) CustomBlocks(typ string) []Block {
	var blocks []Block
	for _, b := range d.Custom {
		if b.Type == typ {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

type Error struct {
	Pos Position
	Err error
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos.String(), e.Err.Error())
}

func (e Error) Unwrap() error { return e.Err }

var (
	ErrUnterminated = errors.New("unterminated block")
	ErrDuplicate    = errors.New("duplicate block")
)

var (
	commentOpen  = []byte("<!--")
	commentClose = []byte("-->")
)

var regexpAttr = regexp.MustCompile(
	"([^\\s=/>]+)(?:\\s*=\\s*(?:\"([^\"]*)\"|'([^']*)'|([^\\s\"'=<>`]+)))?",
)

// Parse splits src into its top-level blocks.
// Text outside of blocks and HTML comments are ignored.
func Parse(filename string, src []byte) (*Descriptor, error) {
	p := parser{filename: filename, src: src}
	d := &Descriptor{Filename: filename}
	for i := 0; i < len(src); {
		lt := bytes.IndexByte(src[i:], '<')
		if lt < 0 {
			break
		}
		i += lt
		if bytes.HasPrefix(src[i:], commentOpen) {
			end := bytes.Index(src[i+len(commentOpen):], commentClose)
			if end < 0 {
				return nil, p.errAt(i, fmt.Errorf("%w: comment", ErrUnterminated))
			}
			i += len(commentOpen) + end + len(commentClose)
			continue
		}
		name := tagName(src[i+1:])
		if name == "" {
			i++
			continue
		}
		b, next, err := p.block(i, name)
		if err != nil {
			return nil, err
		}
		i = next

		switch b.Type {
		case "template":
			if d.Template != nil {
				return nil, p.errAt(b.Pos.Index, fmt.Errorf("%w: <template>", ErrDuplicate))
			}
			d.Template = &b
		case "script":
			if d.Script != nil {
				return nil, p.errAt(b.Pos.Index, fmt.Errorf("%w: <script>", ErrDuplicate))
			}
			d.Script = &b
		case "style":
			d.Styles = append(d.Styles, b)
		default:
			d.Custom = append(d.Custom, b)
		}
	}
	return d, nil
}

type parser struct {
	filename string
	src      []byte
}

func (p parser) pos(index int) Position {
	line := bytes.Count(p.src[:index], []byte{'\n'}) + 1
	lineStart := bytes.LastIndexByte(p.src[:index], '\n') + 1
	return Position{
		Filename: p.filename,
		Index:    index,
		Line:     line,
		Column:   index - lineStart + 1,
	}
}

func (p parser) errAt(index int, err error) Error {
	return Error{Pos: p.pos(index), Err: err}
}

// block parses the block whose opening tag starts at start.
// Returns the index following the closing tag.
func (p parser) block(start int, name string) (Block, int, error) {
	attrStart := start + 1 + len(name)
	openEnd, ok := tagEnd(p.src, attrStart)
	if !ok {
		return Block{}, 0, p.errAt(start, fmt.Errorf("%w: <%s>", ErrUnterminated, name))
	}
	attrs := bytes.TrimSpace(p.src[attrStart : openEnd-1])
	b := Block{Type: name, Pos: p.pos(start)}
	if bytes.HasSuffix(attrs, []byte{'/'}) {
		b.SelfClosing = true
		attrs = attrs[:len(attrs)-1]
	}
	b.Attrs = parseAttrs(attrs)

	if b.SelfClosing {
		b.Start, b.End = openEnd, openEnd
		return b, openEnd, nil
	}
	closeStart, closeEnd, ok := p.findClose(openEnd, name)
	if !ok {
		return Block{}, 0, p.errAt(start, fmt.Errorf("%w: <%s>", ErrUnterminated, name))
	}
	b.Start, b.End = openEnd, closeStart
	b.Content = string(p.src[openEnd:closeStart])
	return b, closeEnd, nil
}

// findClose finds the closing tag of name from index from on.
// Nested templates are balanced, any other block ends at the first
// closing tag.
func (p parser) findClose(from int, name string) (start, end int, ok bool) {
	depth := 0
	for j := from; j < len(p.src); {
		k := bytes.IndexByte(p.src[j:], '<')
		if k < 0 {
			break
		}
		j += k
		rest := p.src[j+1:]
		if len(rest) > 0 && rest[0] == '/' && tagName(rest[1:]) == name {
			end, ok := tagEnd(p.src, j+2+len(name))
			if !ok {
				break
			}
			if depth == 0 {
				return j, end, true
			}
			depth--
			j = end
			continue
		}
		if name == "template" && tagName(rest) == name {
			end, ok := tagEnd(p.src, j+1+len(name))
			if !ok {
				break
			}
			if p.src[end-2] != '/' {
				depth++
			}
			j = end
			continue
		}
		j++
	}
	return 0, 0, false
}

// tagName returns the tag name at the beginning of s if it's followed
// by whitespace, '/' or '>'.
func tagName(s []byte) string {
	n := 0
	for ; n < len(s); n++ {
		c := s[n]
		isLetter := c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
		if isLetter || n > 0 && (c >= '0' && c <= '9' || c == '-' || c == '_') {
			continue
		}
		break
	}
	if n == 0 || n >= len(s) {
		return ""
	}
	switch s[n] {
	case ' ', '\t', '\n', '\r', '\f', '/', '>':
		return string(s[:n])
	}
	return ""
}

// tagEnd returns the index following the '>' that closes the tag,
// skipping quoted attribute values.
func tagEnd(src []byte, from int) (int, bool) {
	var quote byte
	for i := from; i < len(src); i++ {
		switch c := src[i]; {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '>':
			return i + 1, true
		}
	}
	return 0, false
}

func parseAttrs(s []byte) map[string]string {
	m := make(map[string]string)
	for _, a := range regexpAttr.FindAllSubmatch(s, -1) {
		switch {
		case a[2] != nil:
			m[string(a[1])] = string(a[2])
		case a[3] != nil:
			m[string(a[1])] = string(a[3])
		default:
			m[string(a[1])] = string(a[4])
		}
	}
	return m
}
