package msgtree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"
)

// Lang is the content format of a translation block.
type Lang int8

const (
	LangJSON Lang = iota
	LangYAML
	LangJSON5
	LangTOML
)

func (l Lang) String() string {
	switch l {
	case LangYAML:
		return "yaml"
	case LangJSON5:
		return "json5"
	case LangTOML:
		return "toml"
	}
	return "json"
}

// ParseLang maps a block's lang attribute to a Lang.
// Anything unrecognized, including the empty string, is JSON.
func ParseLang(s string) Lang {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yaml", "yml":
		return LangYAML
	case "json5":
		return LangJSON5
	case "toml":
		return LangTOML
	}
	return LangJSON
}

var (
	ErrDecode       = errors.New("decoding translation block")
	ErrEmpty        = errors.New("empty document")
	ErrNotObject    = errors.New("translation block must be an object")
	ErrTrailingData = errors.New("unexpected data after top-level value")
)

// Decode parses content in the given format.
// All errors wrap ErrDecode.
func Decode(content []byte, lang Lang) (*Node, error) {
	var n *Node
	var err error
	switch lang {
	case LangYAML:
		n, err = decodeYAML(content)
	case LangJSON5:
		n, err = decodeJSON5(content)
	case LangTOML:
		n, err = decodeTOML(content)
	default:
		n, err = decodeJSON(content)
	}
	if err != nil {
		return nil, fmt.Errorf("%w (%s): %w", ErrDecode, lang, err)
	}
	return n, nil
}

// DecodeMessages decodes a translation block into a message tree.
// If locale isn't empty the content is the message tree of that single
// locale and gets wrapped as {locale: content}.
func DecodeMessages(content []byte, lang Lang, locale string) (*Node, error) {
	n, err := Decode(content, lang)
	if err != nil {
		return nil, err
	}
	if locale != "" {
		n = Wrap(locale, n)
	}
	if n.Kind != KindObject {
		return nil, fmt.Errorf("%w (%s): %w", ErrDecode, lang, ErrNotObject)
	}
	return n, nil
}

func decodeJSON(content []byte) (*Node, error) {
	d := json.NewDecoder(bytes.NewReader(content))
	d.UseNumber()
	n, err := readJSONValue(d)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, err
	}
	if _, err := d.Token(); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, err
		}
		return nil, ErrTrailingData
	}
	return n, nil
}

func readJSONValue(d *json.Decoder) (*Node, error) {
	tok, err := d.Token()
	if err != nil {
		return nil, err
	}
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			obj := NewObject()
			for d.More() {
				kt, err := d.Token()
				if err != nil {
					return nil, unexpectedEOF(err)
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", kt)
				}
				val, err := readJSONValue(d)
				if err != nil {
					return nil, unexpectedEOF(err)
				}
				obj.Set(key, val)
			}
			if _, err := d.Token(); err != nil { // '}'
				return nil, unexpectedEOF(err)
			}
			return obj, nil
		case '[':
			arr := NewArray()
			for d.More() {
				val, err := readJSONValue(d)
				if err != nil {
					return nil, unexpectedEOF(err)
				}
				arr.Items = append(arr.Items, val)
			}
			if _, err := d.Token(); err != nil { // ']'
				return nil, unexpectedEOF(err)
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", v)
	case string:
		return NewString(v), nil
	case json.Number:
		return NewScalar(v.String()), nil
	case bool:
		if v {
			return NewScalar("true"), nil
		}
		return NewScalar("false"), nil
	case nil:
		return NewScalar("null"), nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// unexpectedEOF turns an io.EOF inside a value into io.ErrUnexpectedEOF
// so it isn't mistaken for an empty document.
func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

func decodeJSON5(content []byte) (*Node, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, ErrEmpty
	}
	var v any
	if err := json5.Unmarshal(content, &v); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return decodeJSON(raw)
}

// decodeTOML orders table keys by their first definition in the document.
func decodeTOML(content []byte) (*Node, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, ErrEmpty
	}
	var v map[string]any
	md, err := toml.Decode(string(content), &v)
	if err != nil {
		return nil, err
	}
	order := make(map[string][]string)
	for _, k := range md.Keys() {
		if len(k) == 0 {
			continue
		}
		parent, name := strings.Join(k[:len(k)-1], "\x00"), k[len(k)-1]
		if !slices.Contains(order[parent], name) {
			order[parent] = append(order[parent], name)
		}
	}
	return fromTOML(v, "", order)
}

func fromTOML(v any, key string, order map[string][]string) (*Node, error) {
	switch v := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for _, k := range order[key] {
			if _, ok := v[k]; ok {
				keys = append(keys, k)
			}
		}
		var rest []string
		for k := range v {
			if !slices.Contains(keys, k) {
				rest = append(rest, k)
			}
		}
		slices.Sort(rest)

		obj := NewObject()
		for _, k := range append(keys, rest...) {
			childKey := k
			if key != "" {
				childKey = key + "\x00" + k
			}
			c, err := fromTOML(v[k], childKey, order)
			if err != nil {
				return nil, err
			}
			obj.Set(k, c)
		}
		return obj, nil
	case []map[string]any:
		arr := NewArray()
		for _, item := range v {
			c, err := fromTOML(item, key, order)
			if err != nil {
				return nil, err
			}
			arr.Items = append(arr.Items, c)
		}
		return arr, nil
	case []any:
		arr := NewArray()
		for _, item := range v {
			c, err := fromTOML(item, key, order)
			if err != nil {
				return nil, err
			}
			arr.Items = append(arr.Items, c)
		}
		return arr, nil
	case string:
		return NewString(v), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return NewScalar(string(raw)), nil
}

// maxYAMLAliases limits the number of alias expansions in a document.
const maxYAMLAliases = 10_000

var (
	ErrAliasCycle = errors.New("recursive YAML alias")
	ErrAliasLimit = errors.New("too many YAML alias expansions")
	ErrMergeValue = errors.New("YAML merge value must be a mapping or a sequence of mappings")
)

func decodeYAML(content []byte) (*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, ErrEmpty
	}
	d := yamlDecoder{expanding: make(map[*yaml.Node]bool)}
	return d.node(&doc)
}

// yamlDecoder converts a YAML node tree expanding aliases and merge keys.
type yamlDecoder struct {
	expanding map[*yaml.Node]bool
	aliases   int
}

func (d *yamlDecoder) node(n *yaml.Node) (*Node, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, ErrEmpty
		}
		return d.node(n.Content[0])
	case yaml.AliasNode:
		if d.expanding[n.Alias] {
			return nil, fmt.Errorf("line %d: %w *%s", n.Line, ErrAliasCycle, n.Value)
		}
		if d.aliases++; d.aliases > maxYAMLAliases {
			return nil, fmt.Errorf("line %d: %w", n.Line, ErrAliasLimit)
		}
		d.expanding[n.Alias] = true
		defer delete(d.expanding, n.Alias)
		return d.node(n.Alias)
	case yaml.MappingNode:
		obj := NewObject()
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, value := n.Content[i], n.Content[i+1]
			if key.Kind == yaml.ScalarNode && key.ShortTag() == "!!merge" {
				if err := d.merge(obj, value); err != nil {
					return nil, err
				}
				continue
			}
			val, err := d.node(value)
			if err != nil {
				return nil, err
			}
			obj.Set(key.Value, val)
		}
		return obj, nil
	case yaml.SequenceNode:
		arr := NewArray()
		for _, c := range n.Content {
			val, err := d.node(c)
			if err != nil {
				return nil, err
			}
			arr.Items = append(arr.Items, val)
		}
		return arr, nil
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!null":
			return NewScalar("null"), nil
		case "!!bool", "!!int", "!!float":
			var v any
			if err := n.Decode(&v); err != nil {
				return nil, err
			}
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", n.Line, err)
			}
			return NewScalar(string(raw)), nil
		}
		return NewString(n.Value), nil
	}
	return nil, fmt.Errorf("line %d: unsupported YAML node", n.Line)
}

// merge adds the fields of the mappings referenced by the merge key value
// to obj. Keys already in obj are kept, earlier mappings take precedence
// over later ones and explicit keys following the merge key override.
func (d *yamlDecoder) merge(obj *Node, value *yaml.Node) error {
	sources := []*yaml.Node{value}
	if value.Kind == yaml.SequenceNode {
		sources = value.Content
	}
	for _, s := range sources {
		src, err := d.node(s)
		if err != nil {
			return err
		}
		if src.Kind != KindObject {
			return fmt.Errorf("line %d: %w", s.Line, ErrMergeValue)
		}
		for _, k := range src.Keys {
			if _, ok := obj.Fields[k]; !ok {
				obj.Set(k, src.Fields[k])
			}
		}
	}
	return nil
}
