package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// StarlarkResult represents the result of a Starlark execution.
type StarlarkResult struct {
	// Output holds the exported globals of the script.
	Output map[string]Value

	// ExecutionTime is how long the script took to execute.
	ExecutionTime time.Duration

	// Error is any error that occurred.
	Error string
}

// StarlarkEvaluator executes Starlark snippets used in configuration
// documents.
type StarlarkEvaluator struct {
	timeout time.Duration
}

// NewStarlarkEvaluator creates a new Starlark evaluator.
func NewStarlarkEvaluator(timeout time.Duration) *StarlarkEvaluator {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &StarlarkEvaluator{
		timeout: timeout,
	}
}

// ErrStarlarkTimeout is returned when a script exceeds the evaluator timeout.
var ErrStarlarkTimeout = errors.New("starlark execution timeout")

// Evaluate executes script with input predeclared and returns its globals.
func (se *StarlarkEvaluator) Evaluate(ctx context.Context, script string, input starlark.StringDict) (*StarlarkResult, error) {
	startTime := time.Now()

	evalCtx, cancel := context.WithTimeout(ctx, se.timeout)
	defer cancel()

	thread := &starlark.Thread{
		Name: "froyo-git",
		Print: func(_ *starlark.Thread, _ string) {
			// print is discarded
		},
	}

	type outcome struct {
		result *StarlarkResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := se.evaluateSync(thread, script, input)
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-evalCtx.Done():
		thread.Cancel("timeout")
		return &StarlarkResult{
			ExecutionTime: time.Since(startTime),
			Error:         fmt.Sprintf("execution timeout after %v", se.timeout),
		}, ErrStarlarkTimeout
	case out := <-done:
		if out.err != nil {
			return &StarlarkResult{
				ExecutionTime: time.Since(startTime),
				Error:         out.err.Error(),
			}, out.err
		}
		out.result.ExecutionTime = time.Since(startTime)
		return out.result, nil
	}
}

func (se *StarlarkEvaluator) evaluateSync(thread *starlark.Thread, script string, input starlark.StringDict) (*StarlarkResult, error) {
	predeclared := starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
	}
	for key, val := range input {
		predeclared[key] = val
	}

	globals, err := starlark.ExecFile(thread, "config.star", script, predeclared)
	if err != nil {
		return nil, fmt.Errorf("starlark execution failed: %w", err)
	}

	output := make(map[string]Value, len(globals))
	for name, val := range globals {
		// Underscore-prefixed globals are private to the script.
		if len(name) > 0 && name[0] == '_' {
			continue
		}
		v, err := fromStarlarkValue(val)
		if err != nil {
			return nil, fmt.Errorf("failed to convert output %s: %w", name, err)
		}
		output[name] = v
	}

	return &StarlarkResult{Output: output}, nil
}

// EvalString evaluates a single expression against t and returns its string
// result. The expression sees `name`, `path` and `target` (a struct with the
// same two fields).
func (se *StarlarkEvaluator) EvalString(ctx context.Context, expr string, t Target) (string, error) {
	name := starlark.String(t.Name())
	path := starlark.String(t.Path())
	input := starlark.StringDict{
		"name": name,
		"path": path,
		"target": starlarkstruct.FromStringDict(starlark.String("target"), starlark.StringDict{
			"name": name,
			"path": path,
		}),
	}

	result, err := se.Evaluate(ctx, "result = ("+expr+")\n", input)
	if err != nil {
		return "", err
	}
	out, ok := result.Output["result"]
	if !ok {
		return "", fmt.Errorf("starlark expression produced no result")
	}
	s, err := out.Str()
	if err != nil {
		return "", fmt.Errorf("starlark expression %q: %w", expr, err)
	}
	return s, nil
}

// fromStarlarkValue converts a Starlark value to a Value.
func fromStarlarkValue(v starlark.Value) (Value, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return Null(), nil
	case starlark.Bool:
		return BoolValue(bool(val)), nil
	case starlark.String:
		return StrValue(string(val)), nil
	case *starlark.List:
		items := make([]Value, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return Value{}, err
			}
			items[i] = item
		}
		return ListValue(items), nil
	case starlark.Tuple:
		items := make([]Value, len(val))
		for i, elem := range val {
			item, err := fromStarlarkValue(elem)
			if err != nil {
				return Value{}, err
			}
			items[i] = item
		}
		return ListValue(items), nil
	case *starlark.Dict:
		d := NewDict()
		for _, kv := range val.Items() {
			key, ok := kv[0].(starlark.String)
			if !ok {
				return Value{}, fmt.Errorf("dict key must be string, got %s", kv[0].Type())
			}
			item, err := fromStarlarkValue(kv[1])
			if err != nil {
				return Value{}, err
			}
			d = d.With(string(key), item)
		}
		return DictValue(d), nil
	case *starlarkstruct.Struct:
		d := NewDict()
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			item, err := fromStarlarkValue(attr)
			if err != nil {
				return Value{}, err
			}
			d = d.With(name, item)
		}
		return DictValue(d), nil
	default:
		return Value{}, &TypeMismatchError{
			Expected: Kinds(KindNull, KindBool, KindStr, KindList, KindDict),
			Got:      "starlark " + v.Type(),
		}
	}
}
