package config

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is the tag of a Value.
type Kind uint8

const (
	// KindNull marks an absent value.
	KindNull Kind = iota
	KindBool
	KindStr
	KindList
	KindDict
	KindCallable
)

// String returns the kind name used in error messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindStr:
		return "str"
	case KindList:
		return "list"
	case KindDict:
		return "dict"
	case KindCallable:
		return "callable"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// KindSet is a set of value kinds accepted by an option.
type KindSet uint8

// Kinds builds a KindSet.
func Kinds(kinds ...Kind) KindSet {
	var s KindSet
	for _, k := range kinds {
		s |= 1 << k
	}
	return s
}

// Has reports whether k is in the set.
func (s KindSet) Has(k Kind) bool {
	return s&(1<<k) != 0
}

// String renders the set as "bool|dict".
func (s KindSet) String() string {
	var names []string
	for k := KindNull; k <= KindCallable; k++ {
		if s.Has(k) {
			names = append(names, k.String())
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// Target is the minimal view of a file-tree node a Callable receives.
type Target interface {
	Path() string
	Name() string
}

// Callable computes a string from the target it is resolved against.
type Callable func(t Target) (string, error)

// Value is an immutable tagged union over the shapes a configuration
// value can take. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	s    string
	list []Value
	dict Dict
	fn   Callable
}

// Null returns the null value.
func Null() Value { return Value{} }

// BoolValue wraps a bool.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// StrValue wraps a string.
func StrValue(s string) Value { return Value{kind: KindStr, s: s} }

// ListValue wraps a list; the slice is copied.
func ListValue(items []Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

// DictValue wraps an ordered dict.
func DictValue(d Dict) Value { return Value{kind: KindDict, dict: d} }

// CallableValue wraps a callable.
func CallableValue(fn Callable) Value {
	if fn == nil {
		return Null()
	}
	return Value{kind: KindCallable, fn: fn}
}

// NewValue converts a decoded Go value into a Value. Map keys are sorted so
// the result does not depend on map iteration order; decoders that preserve
// document order build Dicts directly instead.
func NewValue(raw any) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return Null(), nil
	case Value:
		return v, nil
	case bool:
		return BoolValue(v), nil
	case string:
		return StrValue(v), nil
	case []string:
		items := make([]Value, len(v))
		for i, s := range v {
			items[i] = StrValue(s)
		}
		return Value{kind: KindList, list: items}, nil
	case []any:
		items := make([]Value, 0, len(v))
		for i, item := range v {
			iv, err := NewValue(item)
			if err != nil {
				return Value{}, fmt.Errorf("item %d: %w", i, err)
			}
			items = append(items, iv)
		}
		return Value{kind: KindList, list: items}, nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := NewDict()
		for _, k := range keys {
			iv, err := NewValue(v[k])
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			d = d.With(k, iv)
		}
		return DictValue(d), nil
	case Dict:
		return DictValue(v), nil
	case Callable:
		return CallableValue(v), nil
	case func(Target) (string, error):
		return CallableValue(v), nil
	case func(Target) string:
		return CallableValue(func(t Target) (string, error) { return v(t), nil }), nil
	default:
		return Value{}, &TypeMismatchError{
			Expected: Kinds(KindBool, KindStr, KindList, KindDict, KindCallable),
			Got:      fmt.Sprintf("%T", raw),
		}
	}
}

// MustValue is NewValue that panics; intended for literals in tests and tables.
func MustValue(raw any) Value {
	v, err := NewValue(raw)
	if err != nil {
		panic(err)
	}
	return v
}

// Kind returns the tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is absent.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsTrue reports whether the value is the boolean true.
func (v Value) IsTrue() bool { return v.kind == KindBool && v.b }

// IsEmpty reports whether the value is null, an empty string, list or dict.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindStr:
		return v.s == ""
	case KindList:
		return len(v.list) == 0
	case KindDict:
		return v.dict.Len() == 0
	default:
		return false
	}
}

func (v Value) mismatch(want Kind) error {
	return &TypeMismatchError{Expected: Kinds(want), Got: v.kind.String()}
}

// Bool returns the wrapped bool.
func (v Value) Bool() (bool, error) {
	if v.kind != KindBool {
		return false, v.mismatch(KindBool)
	}
	return v.b, nil
}

// Str returns the wrapped string.
func (v Value) Str() (string, error) {
	if v.kind != KindStr {
		return "", v.mismatch(KindStr)
	}
	return v.s, nil
}

// List returns a copy of the wrapped list.
func (v Value) List() ([]Value, error) {
	if v.kind != KindList {
		return nil, v.mismatch(KindList)
	}
	cp := make([]Value, len(v.list))
	copy(cp, v.list)
	return cp, nil
}

// Dict returns the wrapped dict.
func (v Value) Dict() (Dict, error) {
	if v.kind != KindDict {
		return Dict{}, v.mismatch(KindDict)
	}
	return v.dict, nil
}

// Callable returns the wrapped callable.
func (v Value) Callable() (Callable, error) {
	if v.kind != KindCallable {
		return nil, v.mismatch(KindCallable)
	}
	return v.fn, nil
}

// ValueCases holds one handler per kind for Match. A nil handler makes the
// corresponding kind a type mismatch.
type ValueCases struct {
	Null     func() error
	Bool     func(bool) error
	Str      func(string) error
	List     func([]Value) error
	Dict     func(Dict) error
	Callable func(Callable) error
}

func (c ValueCases) accepted() KindSet {
	var s KindSet
	if c.Null != nil {
		s |= Kinds(KindNull)
	}
	if c.Bool != nil {
		s |= Kinds(KindBool)
	}
	if c.Str != nil {
		s |= Kinds(KindStr)
	}
	if c.List != nil {
		s |= Kinds(KindList)
	}
	if c.Dict != nil {
		s |= Kinds(KindDict)
	}
	if c.Callable != nil {
		s |= Kinds(KindCallable)
	}
	return s
}

// Match dispatches on the tag.
func (v Value) Match(c ValueCases) error {
	switch {
	case v.kind == KindNull && c.Null != nil:
		return c.Null()
	case v.kind == KindBool && c.Bool != nil:
		return c.Bool(v.b)
	case v.kind == KindStr && c.Str != nil:
		return c.Str(v.s)
	case v.kind == KindList && c.List != nil:
		items, _ := v.List()
		return c.List(items)
	case v.kind == KindDict && c.Dict != nil:
		return c.Dict(v.dict)
	case v.kind == KindCallable && c.Callable != nil:
		return c.Callable(v.fn)
	}
	return &TypeMismatchError{Expected: c.accepted(), Got: v.kind.String()}
}

// Resolve evaluates a callable against t and returns the resulting string
// value. Non-callable values are returned unchanged.
func (v Value) Resolve(t Target) (Value, error) {
	if v.kind != KindCallable {
		return v, nil
	}
	s, err := v.fn(t)
	if err != nil {
		return Value{}, err
	}
	return StrValue(s), nil
}

// Raw converts the value back to plain Go data. Callables render as nil.
func (v Value) Raw() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindStr:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Raw()
		}
		return out
	case KindDict:
		out := make(map[string]any, v.dict.Len())
		for _, k := range v.dict.keys {
			out[k] = v.dict.m[k].Raw()
		}
		return out
	default:
		return nil
	}
}

// String renders the value for logs and plan output.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindStr:
		return fmt.Sprintf("%q", v.s)
	case KindCallable:
		return "<callable>"
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		parts := make([]string, 0, v.dict.Len())
		for _, k := range v.dict.keys {
			parts = append(parts, k+": "+v.dict.m[k].String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
}

// Dict is an insertion-ordered, immutable mapping of option keys to values.
type Dict struct {
	keys []string
	m    map[string]Value
}

// NewDict returns an empty dict.
func NewDict() Dict { return Dict{} }

// With returns a copy of d with key set to v. An existing key keeps its
// position.
func (d Dict) With(key string, v Value) Dict {
	out := Dict{
		keys: make([]string, len(d.keys), len(d.keys)+1),
		m:    make(map[string]Value, len(d.m)+1),
	}
	copy(out.keys, d.keys)
	for k, val := range d.m {
		out.m[k] = val
	}
	if _, exists := d.m[key]; !exists {
		out.keys = append(out.keys, key)
	}
	out.m[key] = v
	return out
}

// Without returns a copy of d without key.
func (d Dict) Without(key string) Dict {
	if _, exists := d.m[key]; !exists {
		return d
	}
	out := Dict{m: make(map[string]Value, len(d.m))}
	for _, k := range d.keys {
		if k == key {
			continue
		}
		out.keys = append(out.keys, k)
		out.m[k] = d.m[k]
	}
	return out
}

// Get looks up key.
func (d Dict) Get(key string) (Value, bool) {
	v, ok := d.m[key]
	return v, ok
}

// Has reports whether key is present.
func (d Dict) Has(key string) bool {
	_, ok := d.m[key]
	return ok
}

// Keys returns the keys in insertion order.
func (d Dict) Keys() []string {
	cp := make([]string, len(d.keys))
	copy(cp, d.keys)
	return cp
}

// Len returns the number of keys.
func (d Dict) Len() int { return len(d.keys) }
