// Package msgtree provides the ordered message tree decoded from
// translation blocks.
package msgtree

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Kind is the type of a Node.
type Kind int8

const (
	KindObject Kind = iota
	KindArray
	KindString
	KindScalar // numbers, booleans and null
)

// Node is a node of a message tree.
// The root of a tree maps locale codes to message nodes.
type Node struct {
	Kind Kind

	// Str is the message of a KindString node.
	Str string

	// Raw is the JSON representation of a KindScalar node.
	Raw json.RawMessage

	// Keys lists the keys of a KindObject node in document order.
	Keys   []string
	Fields map[string]*Node

	// Items holds the elements of a KindArray node.
	Items []*Node
}

// NewObject creates an empty object.
func NewObject() *Node {
	return &Node{Kind: KindObject, Fields: make(map[string]*Node)}
}

// NewArray creates an array of items.
func NewArray(items ...*Node) *Node { return &Node{Kind: KindArray, Items: items} }

// NewString creates a message.
func NewString(s string) *Node { return &Node{Kind: KindString, Str: s} }

// NewScalar creates a scalar from its JSON representation.
func NewScalar(raw string) *Node { return &Node{Kind: KindScalar, Raw: json.RawMessage(raw)} }

// Set sets key to v. Redefining an existing key replaces its value
// but keeps its original position.
func (n *Node) Set(key string, v *Node) *Node {
	if _, ok := n.Fields[key]; !ok {
		n.Keys = append(n.Keys, key)
	}
	n.Fields[key] = v
	return n
}

// Get returns the value of key or nil if n has no such key.
func (n *Node) Get(key string) *Node {
	if n == nil || n.Kind != KindObject {
		return nil
	}
	return n.Fields[key]
}

// Locales returns the top-level keys of a message tree.
func (n *Node) Locales() []string {
	if n == nil || n.Kind != KindObject {
		return nil
	}
	return append([]string(nil), n.Keys...)
}

// Paths returns every distinct leaf path found under any locale,
// in order of first discovery.
// Strings are leaves (plural forms like "{n} apple|{n} apples" included),
// objects and arrays are descended into, other scalars are ignored.
func (n *Node) Paths() []string {
	if n == nil || n.Kind != KindObject {
		return nil
	}
	var paths []string
	seen := make(map[string]struct{})
	for _, locale := range n.Keys {
		collectPaths(n.Fields[locale], "", func(p string) {
			if _, ok := seen[p]; ok {
				return
			}
			seen[p] = struct{}{}
			paths = append(paths, p)
		})
	}
	return paths
}

func collectPaths(n *Node, prefix string, add func(string)) {
	visit := func(key string, child *Node) {
		p := key
		if prefix != "" {
			p = prefix + "." + key
		}
		switch child.Kind {
		case KindString:
			add(p)
		case KindObject, KindArray:
			collectPaths(child, p, add)
		}
	}
	switch n.Kind {
	case KindObject:
		for _, k := range n.Keys {
			visit(k, n.Fields[k])
		}
	case KindArray:
		for i, item := range n.Items {
			visit(strconv.Itoa(i), item)
		}
	}
}

// Wrap returns a tree mapping locale to n.
func Wrap(locale string, n *Node) *Node {
	return NewObject().Set(locale, n)
}

// Prefix moves the messages of every locale one level deeper under id:
// {locale: messages} becomes {locale: {id: messages}}.
func (n *Node) Prefix(id string) *Node {
	p := NewObject()
	for _, locale := range n.Keys {
		p.Set(locale, NewObject().Set(id, n.Fields[locale]))
	}
	return p
}

// JSON encodes the tree preserving key order.
// Unlike json.Marshal it doesn't escape '<', '>' and '&'.
func (n *Node) JSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *Node) writeJSON(buf *bytes.Buffer) error {
	switch n.Kind {
	case KindString:
		return writeJSONString(buf, n.Str)
	case KindScalar:
		if len(n.Raw) == 0 {
			buf.WriteString("null")
			return nil
		}
		buf.Write(n.Raw)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range n.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, k := range n.Keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := n.Fields[k].writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1) // Encode appends a newline.
	return nil
}
