package config

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewValue(t *testing.T) {
	tests := []struct {
		name     string
		raw      any
		wantKind Kind
		wantErr  bool
	}{
		{name: "nil", raw: nil, wantKind: KindNull},
		{name: "bool", raw: true, wantKind: KindBool},
		{name: "string", raw: "main", wantKind: KindStr},
		{name: "list", raw: []any{"a", false}, wantKind: KindList},
		{name: "string slice", raw: []string{"a"}, wantKind: KindList},
		{name: "map", raw: map[string]any{"b": "x", "a": true}, wantKind: KindDict},
		{name: "callable", raw: func(t Target) string { return t.Name() }, wantKind: KindCallable},
		{name: "int rejected", raw: 3, wantErr: true},
		{name: "nested float rejected", raw: []any{"a", 1.5}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewValue(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var tm *TypeMismatchError
				if !errors.As(err, &tm) {
					t.Errorf("Expected TypeMismatchError, got %T", err)
				}
				return
			}
			if v.Kind() != tt.wantKind {
				t.Errorf("Expected kind %s, got %s", tt.wantKind, v.Kind())
			}
		})
	}
}

func TestValue_Accessors(t *testing.T) {
	v := StrValue("develop")

	if s, err := v.Str(); err != nil || s != "develop" {
		t.Errorf("Str() = %q, %v", s, err)
	}

	_, err := v.List()
	var tm *TypeMismatchError
	if !errors.As(err, &tm) {
		t.Fatalf("Expected TypeMismatchError from List() on a string, got %v", err)
	}
	if tm.Expected != Kinds(KindList) || tm.Got != "str" {
		t.Errorf("Unexpected mismatch details: %+v", tm)
	}

	if _, err := BoolValue(true).Dict(); err == nil {
		t.Error("Expected error from Dict() on a bool")
	}
	if _, err := Null().Callable(); err == nil {
		t.Error("Expected error from Callable() on null")
	}
}

func TestValue_ListIsCopied(t *testing.T) {
	items := []Value{StrValue("a"), StrValue("b")}
	v := ListValue(items)
	items[0] = StrValue("mutated")

	got, _ := v.List()
	got[1] = StrValue("also mutated")

	again, _ := v.List()
	if s, _ := again[0].Str(); s != "a" {
		t.Errorf("Expected first item a, got %q", s)
	}
	if s, _ := again[1].Str(); s != "b" {
		t.Errorf("Expected second item b, got %q", s)
	}
}

func TestValue_Match(t *testing.T) {
	var seen string
	cases := ValueCases{
		Bool: func(b bool) error {
			seen = "bool"
			return nil
		},
		Dict: func(Dict) error {
			seen = "dict"
			return nil
		},
	}

	if err := BoolValue(true).Match(cases); err != nil || seen != "bool" {
		t.Errorf("Expected bool branch, got %q (%v)", seen, err)
	}
	if err := DictValue(NewDict()).Match(cases); err != nil || seen != "dict" {
		t.Errorf("Expected dict branch, got %q (%v)", seen, err)
	}

	err := StrValue("x").Match(cases)
	var tm *TypeMismatchError
	if !errors.As(err, &tm) {
		t.Fatalf("Expected TypeMismatchError for unhandled kind, got %v", err)
	}
	if tm.Expected.String() != "bool|dict" {
		t.Errorf("Expected bool|dict, got %s", tm.Expected)
	}
}

func TestValue_Resolve(t *testing.T) {
	target := stubTarget{name: "repo", path: "/tmp/repo"}

	fn := CallableValue(func(t Target) (string, error) { return "https://example.com/" + t.Name(), nil })
	resolved, err := fn.Resolve(target)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if s, _ := resolved.Str(); s != "https://example.com/repo" {
		t.Errorf("Expected resolved url, got %q", s)
	}
	if fn.Kind() != KindCallable {
		t.Error("Resolve must not change the receiver")
	}

	plain := StrValue("x")
	if got, _ := plain.Resolve(target); got.String() != plain.String() {
		t.Errorf("Expected non-callable to resolve to itself, got %v", got)
	}
}

func TestDict_Order(t *testing.T) {
	d := NewDict().With("git", BoolValue(true)).With("name", StrValue("a")).With("env", Null())
	d2 := d.With("git", BoolValue(false)).Without("name")

	if diff := cmp.Diff([]string{"git", "name", "env"}, d.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"git", "env"}, d2.Keys()); diff != "" {
		t.Errorf("Keys() after With/Without mismatch (-want +got):\n%s", diff)
	}
	if v, _ := d.Get("git"); !v.IsTrue() {
		t.Error("Expected the original dict to be unchanged")
	}
}

func TestValue_RawAndEmpty(t *testing.T) {
	v := MustValue(map[string]any{"remote": []any{map[string]any{"url": "u"}}, "active": false})

	want := map[string]any{"remote": []any{map[string]any{"url": "u"}}, "active": false}
	if diff := cmp.Diff(want, v.Raw()); diff != "" {
		t.Errorf("Raw() mismatch (-want +got):\n%s", diff)
	}

	for _, empty := range []Value{Null(), StrValue(""), ListValue(nil), DictValue(NewDict())} {
		if !empty.IsEmpty() {
			t.Errorf("Expected %v to be empty", empty)
		}
	}
	if BoolValue(false).IsEmpty() {
		t.Error("false is a value, not empty")
	}
}
