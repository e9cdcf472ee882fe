package config

import (
	"fmt"
	"strconv"
)

// Option is a named, typed node of the desired-configuration tree.
type Option interface {
	// Name is the schema key of the option (list items use their index).
	Name() string

	// Path is the dotted path from the top-level option, e.g. "git.remote.0.url".
	Path() string

	// Value returns the current value.
	Value() Value

	// SetValue validates v against AllowedKinds and stores it, building
	// children for nested and list options.
	SetValue(v Value) error

	// Parent returns the owning option, nil at the top level.
	Parent() Option

	// Children returns the child options in document order.
	Children() []Option

	// Child returns the child with the given name, or nil.
	Child(name string) Option

	// AllowedKinds is the set of value kinds SetValue accepts.
	AllowedKinds() KindSet
}

// BaseOption implements Option for scalar leaves. Concrete options embed it.
type BaseOption struct {
	name   string
	parent Option
	kinds  KindSet
	value  Value
}

// NewBaseOption creates a leaf option accepting the given kinds.
func NewBaseOption(name string, parent Option, kinds KindSet) BaseOption {
	return BaseOption{name: name, parent: parent, kinds: kinds}
}

func (o *BaseOption) Name() string          { return o.name }
func (o *BaseOption) Value() Value          { return o.value }
func (o *BaseOption) Parent() Option        { return o.parent }
func (o *BaseOption) AllowedKinds() KindSet { return o.kinds }
func (o *BaseOption) Children() []Option    { return nil }
func (o *BaseOption) Child(string) Option   { return nil }

// Path joins the parent path and the option name.
func (o *BaseOption) Path() string {
	if o.parent == nil {
		return o.name
	}
	return o.parent.Path() + "." + o.name
}

// SetValue checks the kind of v and stores it.
func (o *BaseOption) SetValue(v Value) error {
	if !o.kinds.Has(v.Kind()) {
		return &TypeMismatchError{Option: o.Path(), Expected: o.kinds, Got: v.Kind().String()}
	}
	o.value = v
	return nil
}

// NestedOption is a dict-valued option whose keys are child options built
// through an OptionsRegistry.
type NestedOption struct {
	BaseOption
	registry *OptionsRegistry
	self     Option
	children []Option
}

// NewNestedOption creates a nested option. Non-dict kinds in kinds are
// accepted as values without children.
func NewNestedOption(name string, parent Option, kinds KindSet, registry *OptionsRegistry) NestedOption {
	return NestedOption{
		BaseOption: NewBaseOption(name, parent, kinds),
		registry:   registry,
	}
}

// Bind records the concrete option embedding this one, so children see it
// as their parent.
func (o *NestedOption) Bind(self Option) {
	o.self = self
}

func (o *NestedOption) owner() Option {
	if o.self != nil {
		return o.self
	}
	return o
}

// SetValue stores v and rebuilds the children from its keys.
func (o *NestedOption) SetValue(v Value) error {
	if err := o.BaseOption.SetValue(v); err != nil {
		return err
	}
	o.children = nil
	if v.Kind() != KindDict {
		return nil
	}
	d, _ := v.Dict()
	d = o.registry.ResolveConfig(d)
	o.value = DictValue(d)

	children, err := o.registry.BuildChildren(o.owner(), d, nil)
	if err != nil {
		return err
	}
	o.children = children
	return nil
}

func (o *NestedOption) Children() []Option {
	cp := make([]Option, len(o.children))
	copy(cp, o.children)
	return cp
}

func (o *NestedOption) Child(name string) Option {
	for _, c := range o.children {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// ItemFactory creates the option for the item at index of a list option.
type ItemFactory func(parent Option, index int) Option

// ListOption is a list-valued option whose items are homogeneous children
// built by a single ItemFactory.
type ListOption struct {
	BaseOption
	newItem  ItemFactory
	self     Option
	children []Option
}

// NewListOption creates a list option.
func NewListOption(name string, parent Option, kinds KindSet, newItem ItemFactory) ListOption {
	return ListOption{
		BaseOption: NewBaseOption(name, parent, kinds|Kinds(KindList)),
		newItem:    newItem,
	}
}

// Bind records the concrete option embedding this one.
func (o *ListOption) Bind(self Option) {
	o.self = self
}

func (o *ListOption) owner() Option {
	if o.self != nil {
		return o.self
	}
	return o
}

// SetValue stores v and builds one child per list item.
func (o *ListOption) SetValue(v Value) error {
	if err := o.BaseOption.SetValue(v); err != nil {
		return err
	}
	o.children = nil
	if v.Kind() != KindList {
		return nil
	}
	items, _ := v.List()
	children := make([]Option, 0, len(items))
	for i, item := range items {
		child := o.newItem(o.owner(), i)
		if child == nil {
			return fmt.Errorf("option %s: no item option for index %d", o.Path(), i)
		}
		if err := child.SetValue(item); err != nil {
			return err
		}
		children = append(children, child)
	}
	o.children = children
	return nil
}

func (o *ListOption) Children() []Option {
	cp := make([]Option, len(o.children))
	copy(cp, o.children)
	return cp
}

func (o *ListOption) Child(name string) Option {
	i, err := strconv.Atoi(name)
	if err != nil || i < 0 || i >= len(o.children) {
		return nil
	}
	return o.children[i]
}

// ItemName is the name given to the list item at index.
func ItemName(index int) string {
	return strconv.Itoa(index)
}

// Walk visits o and its descendants depth-first in document order.
func Walk(o Option, fn func(Option) error) error {
	if err := fn(o); err != nil {
		return err
	}
	for _, c := range o.Children() {
		if err := Walk(c, fn); err != nil {
			return err
		}
	}
	return nil
}

// Ancestor walks up from o and returns the first option for which match
// returns true.
func Ancestor(o Option, match func(Option) bool) Option {
	for p := o.Parent(); p != nil; p = p.Parent() {
		if match(p) {
			return p
		}
	}
	return nil
}
