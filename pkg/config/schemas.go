package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for document validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]schemaEntry
	mu      sync.RWMutex
}

type schemaEntry struct {
	value      cue.Value
	definition string
}

// NodeSchema is the name of the built-in schema for tree documents.
const NodeSchema = "node"

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]schemaEntry),
	}

	if err := sr.RegisterSchema(NodeSchema, "#Node", builtinNodeSchema); err != nil {
		panic(err)
	}

	return sr
}

// RegisterSchema compiles schema and registers the definition that data is
// validated against under name.
func (sr *SchemaRegistry) RegisterSchema(name, definition, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	def := val.LookupPath(cue.ParsePath(definition))
	if !def.Exists() {
		return fmt.Errorf("schema %s does not define %s", name, definition)
	}

	sr.schemas[name] = schemaEntry{value: val, definition: definition}
	return nil
}

// GetSchema retrieves the definition registered under name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	entry, ok := sr.schemas[name]
	if !ok {
		return cue.Value{}, false
	}
	return entry.value.LookupPath(cue.ParsePath(entry.definition)), true
}

// ValidateAgainstSchema validates data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data any) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// ListSchemas returns all registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDocument validates a loaded document against the node schema.
func (sr *SchemaRegistry) ValidateDocument(ctx context.Context, doc *Document) error {
	if err := sr.ValidateAgainstSchema(ctx, NodeSchema, DictValue(doc.Root).Raw()); err != nil {
		return &ValidationError{Source: doc.Source, Message: "schema check failed", Err: err}
	}
	return nil
}

const builtinNodeSchema = `
// A callable written as a mapping.
#URLFunc: {pattern: string} | {starlark: string}

#Remote: {
	name?:          string
	url?:           string | #URLFunc
	type?:          string & =~"^(?i)(github|gitlab)$"
	create_remote?: bool
	active?:        bool
	private?:       bool
	description?:   string
}

#Git: bool | {
	main_branch?: string | [...string]
	remote?:      #Remote | [...#Remote]
	active?:      bool
}

// A directory in the managed tree.
#Node: {
	name?:         string
	should_exist?: bool
	env?: {[string]: string}
	git?:      #Git
	children?: [...#Node]

	// Options contributed by other providers are checked when the tree is built.
	...
}
`
