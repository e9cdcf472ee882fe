package filestate

import (
	"fmt"
	"path/filepath"

	"github.com/sethvargo/go-envconfig"

	"github.com/openfroyo/froyo-git/pkg/config"
	"github.com/openfroyo/froyo-git/pkg/engine"
	"github.com/openfroyo/froyo-git/pkg/telemetry"
)

// Structural keys of a document node. They shape the tree and are not
// options.
const (
	KeyName     = "name"
	KeyChildren = "children"
	KeyEnv      = "env"
)

func isStructural(key string) bool {
	return key == KeyName || key == KeyChildren || key == KeyEnv
}

// Item is a directory of the target tree.
type Item struct {
	name     string
	path     string
	parent   *Item
	options  []config.Option
	children []*Item

	// env holds the node's own env map; lookup chains it with the
	// ancestors and the suite fallback.
	env    map[string]string
	lookup envconfig.Lookuper
	logger *telemetry.Logger
}

var _ engine.Target = (*Item)(nil)

// Build creates the target tree for a document node. The root item lives at
// base joined with the node's name, or at base when the node has no name.
// env is the suite fallback for env parameters; nil means the process
// environment.
func Build(d config.Dict, base string, registry *config.OptionsRegistry, env envconfig.Lookuper) (*Item, error) {
	if env == nil {
		env = envconfig.OsLookuper()
	}

	path := base
	name := filepath.Base(base)
	if v, ok := d.Get(KeyName); ok {
		n, err := nodeName(v, KeyName)
		if err != nil {
			return nil, err
		}
		name = n
		path = filepath.Join(base, n)
	}

	return build(d, name, path, nil, registry, env)
}

func build(d config.Dict, name, path string, parent *Item, registry *config.OptionsRegistry, fallback envconfig.Lookuper) (*Item, error) {
	item := &Item{
		name:   name,
		path:   path,
		parent: parent,
		logger: telemetry.NewNopLogger(),
	}

	env, err := envMap(d, path)
	if err != nil {
		return nil, err
	}
	item.env = env
	item.lookup = envconfig.MultiLookuper(envconfig.MapLookuper(env), fallback)

	d = registry.ResolveConfig(d)
	options, err := registry.BuildChildren(nil, d, isStructural)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	item.options = options

	if v, ok := d.Get(KeyChildren); ok {
		nodes, err := v.List()
		if err != nil {
			return nil, &config.ValidationError{Path: path + ":" + KeyChildren, Message: "children must be a list", Err: err}
		}
		for i, node := range nodes {
			cd, err := node.Dict()
			if err != nil {
				return nil, &config.ValidationError{
					Path:    fmt.Sprintf("%s:%s.%d", path, KeyChildren, i),
					Message: "child must be a mapping",
					Err:     err,
				}
			}
			nv, ok := cd.Get(KeyName)
			if !ok {
				return nil, &config.ValidationError{
					Path:    fmt.Sprintf("%s:%s.%d", path, KeyChildren, i),
					Message: "child needs a name",
				}
			}
			cname, err := nodeName(nv, fmt.Sprintf("%s:%s.%d.%s", path, KeyChildren, i, KeyName))
			if err != nil {
				return nil, err
			}
			child, err := build(cd, cname, filepath.Join(path, cname), item, registry, item.lookup)
			if err != nil {
				return nil, err
			}
			item.children = append(item.children, child)
		}
	}

	return item, nil
}

func nodeName(v config.Value, at string) (string, error) {
	s, err := v.Str()
	if err != nil || s == "" || s != filepath.Base(s) || s == "." || s == ".." {
		return "", &config.ValidationError{Path: at, Message: "name must be a single non-empty path element"}
	}
	return s, nil
}

func envMap(d config.Dict, path string) (map[string]string, error) {
	env := make(map[string]string)
	v, ok := d.Get(KeyEnv)
	if !ok || v.IsNull() {
		return env, nil
	}
	ed, err := v.Dict()
	if err != nil {
		return nil, &config.ValidationError{Path: path + ":" + KeyEnv, Message: "env must be a mapping", Err: err}
	}
	for _, key := range ed.Keys() {
		val, _ := ed.Get(key)
		s, err := val.Str()
		if err != nil {
			return nil, &config.ValidationError{Path: path + ":" + KeyEnv + "." + key, Message: "env values must be strings", Err: err}
		}
		env[key] = s
	}
	return env, nil
}

// SetLogger sets the logger of the item and its descendants.
func (i *Item) SetLogger(l *telemetry.Logger) {
	if l == nil {
		l = telemetry.NewNopLogger()
	}
	i.logger = l.NewComponentLogger("filestate").WithTarget(i.path)
	for _, c := range i.children {
		c.SetLogger(l)
	}
}

func (i *Item) Path() string { return i.path }
func (i *Item) Name() string { return i.name }

// Parent returns the enclosing item, nil for the root.
func (i *Item) Parent() *Item { return i.parent }

func (i *Item) Option(key string) config.Option {
	for _, o := range i.options {
		if o.Name() == key {
			return o
		}
	}
	return nil
}

func (i *Item) OptionValue(key string) config.Value {
	if o := i.Option(key); o != nil {
		return o.Value()
	}
	return config.Null()
}

func (i *Item) Options() []config.Option {
	cp := make([]config.Option, len(i.options))
	copy(cp, i.options)
	return cp
}

func (i *Item) Children() []engine.Target {
	out := make([]engine.Target, len(i.children))
	for n, c := range i.children {
		out[n] = c
	}
	return out
}

// Items returns the child items in document order.
func (i *Item) Items() []*Item {
	cp := make([]*Item, len(i.children))
	copy(cp, i.children)
	return cp
}

// EnvParameter looks key up in this item's env, its ancestors', and then the
// suite fallback. Empty values count as missing.
func (i *Item) EnvParameter(key string) (string, bool) {
	v, ok := i.lookup.Lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (i *Item) Log(msg string) {
	i.logger.Info(msg)
}

// Walk visits i and its descendants depth-first in document order.
func (i *Item) Walk(fn func(*Item) error) error {
	if err := fn(i); err != nil {
		return err
	}
	for _, c := range i.children {
		if err := c.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}
