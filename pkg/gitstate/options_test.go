package gitstate

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/openfroyo/froyo-git/pkg/config"
	"github.com/openfroyo/froyo-git/pkg/engine"
	"github.com/openfroyo/froyo-git/pkg/filestate"
)

type fakeTarget struct {
	path, name string
}

func (f fakeTarget) Path() string { return f.path }
func (f fakeTarget) Name() string { return f.name }

func gitOption(t *testing.T, s Settings, v config.Value) *GitOption {
	t.Helper()
	factory := Options(s).Options()[0]
	o := factory.New(nil).(*GitOption)
	if err := o.SetValue(v); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	return o
}

func TestRequireDirectory(t *testing.T) {
	tests := []struct {
		name string
		git  config.Value
		want bool
	}{
		{name: "true", git: config.BoolValue(true), want: true},
		{name: "mapping", git: config.DictValue(config.NewDict()), want: true},
		{name: "false", git: config.BoolValue(false), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := config.NewDict().With(KeyGit, tt.git)
			out := requireDirectory(in)
			if got := out.Has(filestate.KeyShouldExist); got != tt.want {
				t.Errorf("Expected should_exist present=%v, got %v", tt.want, got)
			}
			if in.Has(filestate.KeyShouldExist) {
				t.Error("Expected input dict to be left alone")
			}
		})
	}
}

func TestGitOption_Sugar(t *testing.T) {
	o := gitOption(t, DefaultSettings(), config.BoolValue(true))
	if o.Value().Kind() != config.KindDict {
		t.Errorf("Expected true stored as a mapping, got %s", o.Value().Kind())
	}
	if !o.Wanted() {
		t.Error("Expected git wanted")
	}

	off := gitOption(t, DefaultSettings(), config.BoolValue(false))
	if off.ShouldHaveGit() || off.Wanted() {
		t.Error("Expected git false to disable")
	}
}

func TestMainBranchOption_BranchName(t *testing.T) {
	target := fakeTarget{path: "/src/svc", name: "svc"}
	tests := []struct {
		name  string
		value config.Value
		want  string
	}{
		{name: "string", value: config.StrValue("develop"), want: "develop"},
		{name: "empty string", value: config.StrValue(""), want: DefaultBranch},
		{name: "null", value: config.Null(), want: DefaultBranch},
		{name: "empty list", value: config.ListValue(nil), want: DefaultBranch},
		{
			name:  "list first element",
			value: config.MustValue([]any{"release", "main"}),
			want:  "release",
		},
		{
			name: "callable",
			value: config.ListValue([]config.Value{
				config.CallableValue(config.PatternCallable("{name}-main")),
			}),
			want: "svc-main",
		},
		{
			name: "pattern mapping",
			value: config.ListValue([]config.Value{
				config.DictValue(config.NewDict().With(config.CallablePatternKey, config.StrValue("feature/{name}"))),
			}),
			want: "feature/svc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewMainBranchOption(nil, nil)
			if err := o.SetValue(tt.value); err != nil {
				t.Fatalf("SetValue: %v", err)
			}
			if got := o.BranchName(target); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestMainBranchOption_TypeMismatch(t *testing.T) {
	o := NewMainBranchOption(nil, nil)
	err := o.SetValue(config.BoolValue(true))
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if c := engine.Classify(err); c == nil || c.Code != engine.ErrCodeTypeMismatch {
		t.Errorf("Expected code %s, got %v", engine.ErrCodeTypeMismatch, c)
	}
}

func remoteOption(t *testing.T, s Settings, v config.Value) *RemoteOption {
	t.Helper()
	git := gitOption(t, s, config.DictValue(config.NewDict().With(KeyRemote, v)))
	return git.Child(KeyRemote).(*RemoteOption)
}

func TestRemoteOption_Desired(t *testing.T) {
	target := fakeTarget{path: "/src/svc", name: "svc"}
	tests := []struct {
		name     string
		settings func(*Settings)
		value    any
		want     []RemoteSpec
	}{
		{
			name:  "single mapping",
			value: map[string]any{"url": "https://github.com/acme/svc.git"},
			want: []RemoteSpec{
				{Name: "origin", URL: "https://github.com/acme/svc.git", Active: true},
			},
		},
		{
			name: "list with defaults and overrides",
			value: []any{
				map[string]any{"url": "https://github.com/acme/svc.git", "create_remote": true, "private": true},
				map[string]any{"name": "mirror", "url": "https://gitlab.com/acme/svc.git", "type": "GitLab", "description": "mirror"},
				map[string]any{"name": "off", "url": "https://example.com/x.git", "active": false},
			},
			want: []RemoteSpec{
				{Name: "origin", URL: "https://github.com/acme/svc.git", CreateRemote: true, Active: true, Private: true},
				{Name: "mirror", URL: "https://gitlab.com/acme/svc.git", Type: "gitlab", Active: true, Description: "mirror"},
			},
		},
		{
			name:     "inactive default",
			settings: func(s *Settings) { s.RemoteActiveDefault = false },
			value: []any{
				map[string]any{"url": "https://github.com/acme/svc.git"},
				map[string]any{"name": "on", "url": "https://github.com/acme/on.git", "active": true},
			},
			want: []RemoteSpec{
				{Name: "on", URL: "https://github.com/acme/on.git", Active: true},
			},
		},
		{
			name:  "pattern url",
			value: map[string]any{"url": map[string]any{"pattern": "git@github.com:acme/{name}.git"}},
			want: []RemoteSpec{
				{Name: "origin", URL: "git@github.com:acme/svc.git", Active: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			if tt.settings != nil {
				tt.settings(&s)
			}
			o := remoteOption(t, s, config.MustValue(tt.value))
			got, err := o.Desired(target)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Remotes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRemoteOption_Invalid(t *testing.T) {
	target := fakeTarget{path: "/src/svc", name: "svc"}
	tests := []struct {
		name  string
		value any
	}{
		{name: "missing url", value: map[string]any{"name": "origin"}},
		{name: "empty name", value: map[string]any{"name": "", "url": "https://github.com/acme/svc.git"}},
		{name: "bad name", value: map[string]any{"name": "a:b", "url": "https://github.com/acme/svc.git"}},
		{
			name: "duplicate name",
			value: []any{
				map[string]any{"url": "https://github.com/acme/a.git"},
				map[string]any{"url": "https://github.com/acme/b.git"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := remoteOption(t, DefaultSettings(), config.MustValue(tt.value))
			_, err := o.Desired(target)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !engine.IsPermanent(err) {
				t.Errorf("Expected a configuration error, got: %v", err)
			}
		})
	}
}

func TestRemoteItem_SetValueErrors(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{name: "unknown type", value: map[string]any{"url": "https://x/y.git", "type": "bitbucket"}},
		{name: "unknown key", value: map[string]any{"url": "https://x/y.git", "branch": "main"}},
		{name: "bad callable", value: map[string]any{"url": map[string]any{"lambda": "x"}}},
		{name: "flag not bool", value: map[string]any{"url": "https://x/y.git", "private": "yes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			git := NewGitOption(nil, config.MustOptionsRegistry(config.StaticProvider{
				ProviderName: "test",
				Factories: []config.OptionFactory{{
					Key: KeyRemote,
					New: func(p config.Option) config.Option {
						return NewRemoteOption(p, config.MustOptionsRegistry(RemoteItemOptions(DefaultSettings())), DefaultSettings())
					},
				}},
			}), DefaultSettings())
			err := git.SetValue(config.DictValue(config.NewDict().With(KeyRemote, config.MustValue(tt.value))))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
		})
	}
}
