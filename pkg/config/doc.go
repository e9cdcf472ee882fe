// Package config provides the desired-configuration model of froyo-git:
// typed configuration values, the option tree built from a document, and
// the loaders that read YAML and CUE documents.
//
// # Overview
//
// A document describes a directory tree. Each node carries option keys such
// as `should_exist` or `git`. The keys are turned into Option values by the
// factories registered in an OptionsRegistry, assembled from one or more
// OptionsProviders at startup.
//
// # Components
//
// Value: an immutable tagged union over null, bool, str, list, dict and
// callable. Accessors return a TypeMismatchError when the tag does not match;
// Match dispatches over every tag in one call.
//
// Option: a node of the option tree. BaseOption covers scalar leaves,
// NestedOption builds children from dict keys and ListOption builds one
// homogeneous child per list item. SetValue checks the value kind before
// storing it, so shape errors surface when the tree is built.
//
// OptionsRegistry: merges providers, rejects duplicate keys and runs each
// factory's Resolve hook on a dict before its children are built. Hooks
// inject implied options (a `git` key implies `should_exist: true`).
//
// Loader: decodes YAML (keeping key order through yaml.Node) and CUE
// documents, rejects numbers, and validates the result against the built-in
// `#Node` CUE schema held by the SchemaRegistry.
//
// StarlarkEvaluator: evaluates the `{starlark: ...}` callables documents may
// use for computed values such as remote URLs.
//
// # Usage Example
//
//	loader := config.NewLoader()
//	doc, err := loader.LoadFile(ctx, "workspace.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry := config.MustOptionsRegistry(providers...)
//	children, err := registry.BuildChildren(nil, doc.Root, structuralKey)
//
// # Callables
//
// A callable value receives the target it is resolved against. Documents
// write callables as a single-key mapping:
//
//	url: {pattern: "git@github.com:acme/{name}.git"}
//	url: {starlark: "'https://gitlab.com/acme/' + target.name + '.git'"}
//
// Starlark runs without filesystem or network access, with print suppressed
// and a timeout (5 seconds by default).
package config
