package gitstate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/openfroyo/froyo-git/pkg/config"
	"github.com/openfroyo/froyo-git/pkg/remote"
)

// DefaultRemoteName is the name of a remote item without one.
const DefaultRemoteName = "origin"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// RemoteSpec is a remote item resolved against a target.
type RemoteSpec struct {
	Name         string `json:"name" validate:"required,printascii,excludesall=~^:?*["`
	URL          string `json:"url" validate:"required"`
	Type         string `json:"type,omitempty" validate:"omitempty,oneof=github gitlab"`
	CreateRemote bool   `json:"create_remote"`
	Active       bool   `json:"active"`
	Private      bool   `json:"private"`
	Description  string `json:"description,omitempty"`
}

// RemoteItemOption is one entry of the remote list.
type RemoteItemOption struct {
	config.NestedOption
	settings Settings
}

// NewRemoteItemOption creates the item at index of a remote list.
func NewRemoteItemOption(parent config.Option, index int, registry *config.OptionsRegistry, s Settings) *RemoteItemOption {
	o := &RemoteItemOption{
		NestedOption: config.NewNestedOption(config.ItemName(index), parent, config.Kinds(config.KindDict), registry),
		settings:     s,
	}
	o.Bind(o)
	return o
}

// Spec resolves the item against t. Inactive items are returned without
// validation.
func (o *RemoteItemOption) Spec(t config.Target) (RemoteSpec, error) {
	spec := RemoteSpec{
		Name:   DefaultRemoteName,
		Active: o.settings.RemoteActiveDefault,
	}

	for _, c := range o.Children() {
		v := c.Value()
		if v.IsNull() {
			continue
		}

		var err error
		switch c.Name() {
		case KeyRemoteName:
			spec.Name, err = v.Str()
		case KeyURL:
			var resolved config.Value
			if resolved, err = v.Resolve(t); err == nil {
				spec.URL, err = resolved.Str()
			}
		case KeyType:
			spec.Type, err = v.Str()
			spec.Type = strings.ToLower(spec.Type)
		case KeyCreateRemote:
			spec.CreateRemote, err = v.Bool()
		case KeyActive:
			spec.Active, err = v.Bool()
		case KeyPrivate:
			spec.Private, err = v.Bool()
		case KeyDescription:
			spec.Description, err = v.Str()
		}
		if err != nil {
			return RemoteSpec{}, &config.ValidationError{Path: c.Path(), Message: "cannot resolve value", Err: err}
		}
	}

	if !spec.Active {
		return spec, nil
	}
	if err := validate.Struct(spec); err != nil {
		return RemoteSpec{}, specError(o.Path(), err)
	}
	return spec, nil
}

func specError(path string, err error) error {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return &config.ValidationError{Path: path, Message: "invalid remote", Err: err}
	}
	msgs := make([]string, 0, len(fields))
	for _, fe := range fields {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
		}
	}
	return &config.ValidationError{Path: path, Message: "invalid remote: " + strings.Join(msgs, "; ")}
}

// typeOption is the remote type. Values are checked when set.
type typeOption struct {
	config.BaseOption
}

func newTypeOption(parent config.Option) config.Option {
	return &typeOption{BaseOption: config.NewBaseOption(KeyType, parent, config.Kinds(config.KindStr, config.KindNull))}
}

func (o *typeOption) SetValue(v config.Value) error {
	if s, err := v.Str(); err == nil {
		if _, err := remote.ParseKind(s); err != nil {
			return &config.ValidationError{Path: o.Path(), Message: "unsupported remote type", Err: err}
		}
	}
	return o.BaseOption.SetValue(v)
}

// RemoteItemOptions is the provider of the keys of a remote item.
func RemoteItemOptions(s Settings) config.OptionsProvider {
	return config.StaticProvider{
		ProviderName: "git.remote",
		Factories: []config.OptionFactory{
			{Key: KeyRemoteName, New: newStringOption(KeyRemoteName)},
			{Key: KeyURL, New: func(parent config.Option) config.Option {
				return newCallableOption(KeyURL, parent, s.Starlark)
			}},
			{Key: KeyType, New: newTypeOption},
			{Key: KeyCreateRemote, New: newFlagOption(KeyCreateRemote)},
			{Key: KeyActive, New: newFlagOption(KeyActive)},
			{Key: KeyPrivate, New: newFlagOption(KeyPrivate)},
			{Key: KeyDescription, New: newStringOption(KeyDescription)},
		},
	}
}

// Options is the provider of the git key. It must be registered next to
// filestate.DefaultOptions since git implies should_exist.
func Options(s Settings) config.OptionsProvider {
	items := config.MustOptionsRegistry(RemoteItemOptions(s))
	inner := config.MustOptionsRegistry(config.StaticProvider{
		ProviderName: "git",
		Factories: []config.OptionFactory{
			{Key: KeyMainBranch, New: func(parent config.Option) config.Option {
				return NewMainBranchOption(parent, s.Starlark)
			}},
			{Key: KeyRemote, New: func(parent config.Option) config.Option {
				return NewRemoteOption(parent, items, s)
			}},
			{Key: KeyActive, New: newFlagOption(KeyActive)},
		},
	})

	return config.StaticProvider{
		ProviderName: "git",
		Factories: []config.OptionFactory{
			{
				Key: KeyGit,
				New: func(parent config.Option) config.Option {
					return NewGitOption(parent, inner, s)
				},
				Resolve: requireDirectory,
			},
		},
	}
}
