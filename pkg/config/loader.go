package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// Format is the syntax of a desired-state document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
)

// Document is a decoded desired-state document.
type Document struct {
	// Source is the file the document was read from, or a name for inline content.
	Source string

	// Format is the syntax the document was written in.
	Format Format

	// Root is the top-level node, keys in document order.
	Root Dict
}

// Loader reads YAML and CUE documents into ordered Values.
type Loader struct {
	cueCtx  *cue.Context
	schemas *SchemaRegistry
}

// NewLoader creates a loader that validates against the built-in schemas.
func NewLoader() *Loader {
	return &Loader{
		cueCtx:  cuecontext.New(),
		schemas: NewSchemaRegistry(),
	}
}

// Schemas returns the schema registry used for validation.
func (l *Loader) Schemas() *SchemaRegistry {
	return l.schemas
}

// FormatForPath picks the document format from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("unsupported document extension %q", filepath.Ext(path))
	}
}

// LoadFile reads, decodes and schema-checks the document at path.
func (l *Loader) LoadFile(ctx context.Context, path string) (*Document, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return l.Load(ctx, path, format, data)
}

// Load decodes data and validates it against the node schema.
func (l *Loader) Load(ctx context.Context, source string, format Format, data []byte) (*Document, error) {
	var (
		root Value
		err  error
	)
	switch format {
	case FormatYAML:
		root, err = decodeYAML(data)
	case FormatCUE:
		root, err = l.decodeCUE(source, data)
	default:
		return nil, fmt.Errorf("unsupported document format %q", format)
	}
	if err != nil {
		return nil, &ValidationError{Source: source, Message: "failed to decode document", Err: err}
	}

	doc := &Document{Source: source, Format: format}
	switch root.Kind() {
	case KindNull:
		doc.Root = NewDict()
	case KindDict:
		doc.Root, _ = root.Dict()
	default:
		return nil, &ValidationError{Source: source, Message: fmt.Sprintf("top level must be a mapping, got %s", root.Kind())}
	}

	if err := l.schemas.ValidateDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeYAML(data []byte) (Value, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return Value{}, err
	}
	if node.Kind == 0 {
		return Null(), nil
	}
	return yamlNodeValue(&node, "")
}

func yamlNodeValue(n *yaml.Node, path string) (Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null(), nil
		}
		return yamlNodeValue(n.Content[0], path)

	case yaml.AliasNode:
		return yamlNodeValue(n.Alias, path)

	case yaml.MappingNode:
		d := NewDict()
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode, valNode := n.Content[i], n.Content[i+1]
			if keyNode.Kind != yaml.ScalarNode {
				return Value{}, fmt.Errorf("line %d: mapping keys must be scalars", keyNode.Line)
			}
			key := keyNode.Value
			if d.Has(key) {
				return Value{}, fmt.Errorf("line %d: duplicate key %q", keyNode.Line, joinPath(path, key))
			}
			v, err := yamlNodeValue(valNode, joinPath(path, key))
			if err != nil {
				return Value{}, err
			}
			d = d.With(key, v)
		}
		return DictValue(d), nil

	case yaml.SequenceNode:
		items := make([]Value, 0, len(n.Content))
		for i, item := range n.Content {
			v, err := yamlNodeValue(item, joinPath(path, ItemName(i)))
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return ListValue(items), nil

	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!null":
			return Null(), nil
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return Value{}, fmt.Errorf("line %d: %w", n.Line, err)
			}
			return BoolValue(b), nil
		case "!!int", "!!float":
			if numberAsText(path) {
				return StrValue(n.Value), nil
			}
			return Value{}, &TypeMismatchError{
				Option:   path,
				Expected: Kinds(KindBool, KindStr, KindList, KindDict),
				Got:      strings.TrimPrefix(n.ShortTag(), "!!"),
			}
		default:
			return StrValue(n.Value), nil
		}
	}
	return Value{}, fmt.Errorf("line %d: unsupported yaml node", n.Line)
}

func (l *Loader) decodeCUE(source string, data []byte) (Value, error) {
	v := l.cueCtx.CompileBytes(data, cue.Filename(source))
	if err := v.Err(); err != nil {
		return Value{}, err
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Value{}, err
	}
	return cueValue(v, "")
}

func cueValue(v cue.Value, path string) (Value, error) {
	switch v.IncompleteKind() {
	case cue.NullKind:
		return Null(), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return Value{}, err
		}
		return BoolValue(b), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return Value{}, err
		}
		return StrValue(s), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return Value{}, err
		}
		var items []Value
		for i := 0; iter.Next(); i++ {
			item, err := cueValue(iter.Value(), joinPath(path, ItemName(i)))
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return ListValue(items), nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return Value{}, err
		}
		d := NewDict()
		for iter.Next() {
			key := iter.Selector().Unquoted()
			item, err := cueValue(iter.Value(), joinPath(path, key))
			if err != nil {
				return Value{}, err
			}
			d = d.With(key, item)
		}
		return DictValue(d), nil
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
		if numberAsText(path) {
			text, err := v.MarshalJSON()
			if err != nil {
				return Value{}, err
			}
			return StrValue(string(text)), nil
		}
	}
	return Value{}, &TypeMismatchError{
		Option:   path,
		Expected: Kinds(KindBool, KindStr, KindList, KindDict),
		Got:      v.IncompleteKind().String(),
	}
}

// numberAsText reports whether a number at path is read as its text. Node
// names and env values are strings however they are written; options keep
// rejecting numbers.
func numberAsText(path string) bool {
	parts := strings.Split(path, ".")
	if parts[len(parts)-1] == "name" && !isOptionPath(parts) {
		return true
	}
	return len(parts) >= 2 && parts[len(parts)-2] == "env" && !isOptionPath(parts[:len(parts)-1])
}

// isOptionPath reports whether parts lead through an option rather than
// only through children items.
func isOptionPath(parts []string) bool {
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "children" && i+1 < len(parts)-1 {
			i++
			continue
		}
		return true
	}
	return false
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
