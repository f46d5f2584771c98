package refscan

import (
	"slices"

	sitter "github.com/smacker/go-tree-sitter"
)

const (
	nodeArguments          = "arguments"
	nodeArray              = "array"
	nodeCallExpression     = "call_expression"
	nodeComment            = "comment"
	nodeIdentifier         = "identifier"
	nodeMemberExpression   = "member_expression"
	nodeNumber             = "number"
	nodeObject             = "object"
	nodePair               = "pair"
	nodeParenthesized      = "parenthesized_expression"
	nodePropertyIdentifier = "property_identifier"
	nodeString             = "string"
	nodeThis               = "this"
	nodeVariableDeclarator = "variable_declarator"
)

const directiveMarker = "v-t"

type call struct {
	fn   *sitter.Node
	args []*sitter.Node
}

// matchFunc returns the path literal of c, or nil if c doesn't match.
// exclusive reports that c was recognized by its callee alone and no
// other matcher should look at it, even when there's no literal.
type matchFunc func(s *scanner, c call) (lit *sitter.Node, exclusive bool)

var matchers = [...]struct {
	shape Shape
	match matchFunc
}{
	{ShapeScopeCall, (*scanner).matchScopeCall},
	{ShapeThisCall, (*scanner).matchThisCall},
	{ShapeElement, (*scanner).matchElement},
	{ShapeDirective, (*scanner).matchDirective},
}

func (s *scanner) dispatch(n *sitter.Node) {
	c := call{fn: n.ChildByFieldName("function")}
	if c.fn == nil {
		return
	}
	if args := n.ChildByFieldName("arguments"); args != nil && args.Type() == nodeArguments {
		c.args = namedChildren(args)
	}
	for _, m := range matchers {
		lit, exclusive := m.match(s, c)
		if lit != nil {
			s.emit(m.shape, lit)
		}
		if exclusive {
			return
		}
	}
}

// matchScopeCall matches _vm.$t(lit) and _vm.$tc(lit).
func (s *scanner) matchScopeCall(c call) (*sitter.Node, bool) {
	obj, prop, ok := s.member(c.fn)
	if !ok || obj.Type() != nodeIdentifier || !slices.Contains(s.scope, s.text(obj)) {
		return nil, false
	}
	if p := s.text(prop); p != "$t" && p != "$tc" {
		return nil, false
	}
	return s.stringArg(c, 0), true
}

// matchThisCall matches this.$i18n.t(lit) and this.$i18n.tc(lit).
func (s *scanner) matchThisCall(c call) (*sitter.Node, bool) {
	obj, prop, ok := s.member(c.fn)
	if !ok {
		return nil, false
	}
	if p := s.text(prop); p != "t" && p != "tc" {
		return nil, false
	}
	this, i18n, ok := s.member(obj)
	if !ok || this.Type() != nodeThis || s.text(i18n) != "$i18n" {
		return nil, false
	}
	return s.stringArg(c, 0), true
}

// matchElement matches _c('i18n', {attrs: {path: lit}}).
func (s *scanner) matchElement(c call) (*sitter.Node, bool) {
	if !s.isFactory(c.fn) || len(c.args) < 2 {
		return nil, false
	}
	if tag, ok := s.stringValue(c.args[0]); !ok || tag != "i18n" {
		return nil, false
	}
	attrs := s.prop(c.args[1], "attrs")
	if attrs == nil {
		return nil, false
	}
	return asString(s.prop(attrs, "path")), false
}

// matchDirective matches the data object of a virtual node carrying
// a v-t directive: _c(tag, {directives: [{rawName: "v-t", value: lit}]}).
// A value that is an object literal is descended into for its path.
func (s *scanner) matchDirective(c call) (*sitter.Node, bool) {
	if !s.isFactory(c.fn) || len(c.args) < 2 {
		return nil, false
	}
	dirs := s.prop(c.args[1], "directives")
	if dirs == nil || dirs.Type() != nodeArray {
		return nil, false
	}
	for _, d := range namedChildren(dirs) {
		d = unparen(d)
		if d.Type() != nodeObject || !s.hasStringValue(d, directiveMarker) {
			continue
		}
		value := s.prop(d, "value")
		if value != nil && value.Type() == nodeObject {
			value = s.prop(value, "path")
		}
		return asString(value), false
	}
	return nil, false
}

func (s *scanner) isFactory(fn *sitter.Node) bool {
	return fn.Type() == nodeIdentifier && slices.Contains(s.factories, s.text(fn))
}

// member splits a non-computed member expression into object and property.
func (s *scanner) member(n *sitter.Node) (obj, prop *sitter.Node, ok bool) {
	if n == nil || n.Type() != nodeMemberExpression {
		return nil, nil, false
	}
	obj, prop = n.ChildByFieldName("object"), n.ChildByFieldName("property")
	if obj == nil || prop == nil || prop.Type() != nodePropertyIdentifier {
		return nil, nil, false
	}
	return unparen(obj), prop, true
}

func (s *scanner) stringArg(c call, i int) *sitter.Node {
	if i >= len(c.args) {
		return nil
	}
	return asString(c.args[i])
}

func (s *scanner) stringValue(n *sitter.Node) (string, bool) {
	if n = asString(n); n == nil {
		return "", false
	}
	return unquote(s.text(n))
}

// prop returns the value of the first property named key of the object
// literal n. Returns nil if n isn't an object literal or has no such key.
func (s *scanner) prop(n *sitter.Node, key string) *sitter.Node {
	n = unparen(n)
	if n == nil || n.Type() != nodeObject {
		return nil
	}
	for _, p := range namedChildren(n) {
		if p.Type() != nodePair {
			continue
		}
		if k, ok := s.keyName(p.ChildByFieldName("key")); ok && k == key {
			return unparen(p.ChildByFieldName("value"))
		}
	}
	return nil
}

// hasStringValue reports whether any property of object n has the string
// literal v as value.
func (s *scanner) hasStringValue(n *sitter.Node, v string) bool {
	for _, p := range namedChildren(n) {
		if p.Type() != nodePair {
			continue
		}
		if sv, ok := s.stringValue(p.ChildByFieldName("value")); ok && sv == v {
			return true
		}
	}
	return false
}

// keyName returns the name of a property key written as identifier,
// string or number. Computed keys have no static name.
func (s *scanner) keyName(k *sitter.Node) (string, bool) {
	if k == nil {
		return "", false
	}
	switch k.Type() {
	case nodePropertyIdentifier, nodeIdentifier, nodeNumber:
		return s.text(k), true
	case nodeString:
		return unquote(s.text(k))
	}
	return "", false
}

// asString returns n without parentheses if it's a string literal.
func asString(n *sitter.Node) *sitter.Node {
	n = unparen(n)
	if n == nil || n.Type() != nodeString {
		return nil
	}
	return n
}

func unparen(n *sitter.Node) *sitter.Node {
	for n != nil && n.Type() == nodeParenthesized {
		children := namedChildren(n)
		if len(children) != 1 {
			return n
		}
		n = children[0]
	}
	return n
}

// namedChildren returns the named children of n except comments.
func namedChildren(n *sitter.Node) []*sitter.Node {
	count := int(n.NamedChildCount())
	children := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		c := n.NamedChild(i)
		if c == nil || c.Type() == nodeComment {
			continue
		}
		children = append(children, c)
	}
	return children
}
