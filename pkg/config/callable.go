package config

import (
	"context"
	"fmt"
	"strings"
)

// Keys of a callable written as a mapping in a document.
const (
	CallablePatternKey  = "pattern"
	CallableStarlarkKey = "starlark"
)

// PatternCallable returns a callable expanding {name} and {path} in pattern
// with the target's name and path.
func PatternCallable(pattern string) Callable {
	return func(t Target) (string, error) {
		r := strings.NewReplacer("{name}", t.Name(), "{path}", t.Path())
		return r.Replace(pattern), nil
	}
}

// StarlarkCallable returns a callable evaluating expr with se.
func StarlarkCallable(se *StarlarkEvaluator, expr string) Callable {
	return func(t Target) (string, error) {
		return se.EvalString(context.Background(), expr, t)
	}
}

// CallableFromDict converts the document form of a callable
// ({pattern: ...} or {starlark: ...}) into a Callable.
func CallableFromDict(d Dict, se *StarlarkEvaluator) (Callable, error) {
	if d.Len() != 1 {
		return nil, fmt.Errorf("callable mapping needs exactly one of %q or %q", CallablePatternKey, CallableStarlarkKey)
	}
	key := d.Keys()[0]
	v, _ := d.Get(key)
	src, err := v.Str()
	if err != nil {
		return nil, fmt.Errorf("callable %s: %w", key, err)
	}

	switch key {
	case CallablePatternKey:
		return PatternCallable(src), nil
	case CallableStarlarkKey:
		if se == nil {
			se = NewStarlarkEvaluator(0)
		}
		return StarlarkCallable(se, src), nil
	default:
		return nil, fmt.Errorf("unknown callable kind %q", key)
	}
}
