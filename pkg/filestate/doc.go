// Package filestate builds the target tree a document describes.
//
// Each document node becomes an Item: a directory whose path is its parent's
// path joined with the node name. The keys name, children and env shape the
// tree; every other key is an option built through the options registry.
// Env parameters resolve through the node's env map, then its ancestors',
// then a suite fallback, usually the process environment.
//
// The package also owns the should_exist option and the directory creation
// it requires, which other operations such as repository initialization
// depend on.
package filestate
