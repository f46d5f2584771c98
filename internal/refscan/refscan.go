// Package refscan finds references to translation paths in compiled
// component code: $t/$tc calls on the template scope, this.$i18n.t/tc calls,
// the i18n interpolation component and the v-t directive.
package refscan

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/romshark/scopei18n/internal/registry"
	"github.com/romshark/scopei18n/internal/rewrite"
)

type Shape int8

const (
	_ Shape = iota

	// ShapeScopeCall is _vm.$t('path') or _vm.$tc('path', n).
	ShapeScopeCall

	// ShapeThisCall is this.$i18n.t('path') or this.$i18n.tc('path', n).
	ShapeThisCall

	// ShapeElement is _c('i18n', {attrs: {path: 'path'}}).
	ShapeElement

	// ShapeDirective is _c('p', {directives: [{rawName: 'v-t', value: 'path'}]})
	// or the same with value: {path: 'path'}.
	ShapeDirective
)

func (s Shape) String() string {
	switch s {
	case ShapeScopeCall:
		return "scope-call"
	case ShapeThisCall:
		return "this-call"
	case ShapeElement:
		return "element"
	case ShapeDirective:
		return "directive"
	}
	return fmt.Sprintf("Shape(%d)", int8(s))
}

// Reference is a string literal referencing a translation path.
type Reference struct {
	Shape Shape

	// Path is the decoded value of the literal.
	Path string

	// Raw is the literal as written, quotes included.
	Raw string

	// Start and End delimit the literal in the source (half-open, bytes).
	Start, End int

	// Line and Column are 1-based.
	Line, Column int
}

var (
	DefaultScopeIdents      = []string{"_vm"}
	DefaultElementFactories = []string{"_c"}
)

// Options configure the identifiers Scan recognizes.
type Options struct {
	// ScopeIdents are identifiers referring to the component instance in
	// compiled templates. Defaults to DefaultScopeIdents.
	// Variables initialized with `this` are added automatically.
	ScopeIdents []string

	// ElementFactories are the functions creating virtual nodes.
	// Defaults to DefaultElementFactories.
	ElementFactories []string
}

var ErrParse = errors.New("parsing JavaScript")

// Scan parses src and calls found for every reference in tree order.
func Scan(ctx context.Context, src []byte, opts Options, found func(Reference)) error {
	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrParse, err)
	}
	defer tree.Close()

	ScanTree(tree.RootNode(), src, opts, found)
	return nil
}

// ScanTree is like Scan for an already parsed program.
func ScanTree(root *sitter.Node, src []byte, opts Options, found func(Reference)) {
	s := &scanner{
		src:       src,
		scope:     opts.ScopeIdents,
		factories: opts.ElementFactories,
		found:     found,
		seen:      make(map[uint32]struct{}),
	}
	if s.scope == nil {
		s.scope = DefaultScopeIdents
	}
	if s.factories == nil {
		s.factories = DefaultElementFactories
	}
	s.scope = slices.Clone(s.scope)
	s.collectThisAliases(root)
	s.walk(root)
}

// Collect returns all references found in src.
func Collect(ctx context.Context, src []byte, opts Options) ([]Reference, error) {
	var refs []Reference
	err := Scan(ctx, src, opts, func(r Reference) { refs = append(refs, r) })
	return refs, err
}

// Edits returns the rewrite of every reference whose path is registered
// for id. Other references are left alone: they may be resolved at runtime
// or declared by another file.
func Edits(refs []Reference, id string, reg *registry.Registry) []rewrite.Edit {
	if reg == nil {
		return nil
	}
	var edits []rewrite.Edit
	for _, r := range refs {
		if !reg.Has(id, r.Path) {
			continue
		}
		edits = append(edits, rewrite.Edit{
			Start: r.Start,
			End:   r.End,
			Text:  Replacement(id, r.Path),
		})
	}
	return edits
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\u2028", `\u2028`,
	"\u2029", `\u2029`,
)

// Replacement returns the double-quoted literal "<id>.<path>".
func Replacement(id, path string) string {
	return `"` + literalEscaper.Replace(id+"."+path) + `"`
}

type scanner struct {
	src       []byte
	scope     []string
	factories []string
	found     func(Reference)
	seen      map[uint32]struct{}
}

func (s *scanner) walk(n *sitter.Node) {
	if n.Type() == nodeCallExpression {
		s.dispatch(n)
	}
	for i, c := 0, int(n.NamedChildCount()); i < c; i++ {
		s.walk(n.NamedChild(i))
	}
}

// collectThisAliases adds every variable initialized with `this`
// (`var _vm = this`) to the scope identifiers.
func (s *scanner) collectThisAliases(n *sitter.Node) {
	if n.Type() == nodeVariableDeclarator {
		name := n.ChildByFieldName("name")
		value := unparen(n.ChildByFieldName("value"))
		if name != nil && value != nil &&
			name.Type() == nodeIdentifier && value.Type() == nodeThis {
			if id := s.text(name); !slices.Contains(s.scope, id) {
				s.scope = append(s.scope, id)
			}
		}
	}
	for i, c := 0, int(n.NamedChildCount()); i < c; i++ {
		s.collectThisAliases(n.NamedChild(i))
	}
}

func (s *scanner) emit(shape Shape, lit *sitter.Node) {
	if _, ok := s.seen[lit.StartByte()]; ok {
		return
	}
	raw := s.text(lit)
	path, ok := unquote(raw)
	if !ok {
		return
	}
	s.seen[lit.StartByte()] = struct{}{}
	p := lit.StartPoint()
	s.found(Reference{
		Shape:  shape,
		Path:   path,
		Raw:    raw,
		Start:  int(lit.StartByte()),
		End:    int(lit.EndByte()),
		Line:   int(p.Row) + 1,
		Column: int(p.Column) + 1,
	})
}

func (s *scanner) text(n *sitter.Node) string {
	return string(s.src[n.StartByte():n.EndByte()])
}
