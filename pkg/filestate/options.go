package filestate

import (
	"context"
	"os"

	"github.com/openfroyo/froyo-git/pkg/config"
	"github.com/openfroyo/froyo-git/pkg/engine"
)

// KeyShouldExist is the option asking for the target directory to exist.
const KeyShouldExist = "should_exist"

// ShouldExistOption is the should_exist flag of a target.
type ShouldExistOption struct {
	config.BaseOption
}

// NewShouldExistOption creates an unset should_exist option.
func NewShouldExistOption(parent config.Option) config.Option {
	return &ShouldExistOption{BaseOption: config.NewBaseOption(KeyShouldExist, parent, config.Kinds(config.KindBool))}
}

// CreateRequiredOperation returns a directory creation when the flag is set
// and the path is missing.
func (o *ShouldExistOption) CreateRequiredOperation(_ context.Context, _ *engine.ExecContext, t engine.Target, _ engine.ScopeSet) (engine.Operation, error) {
	if !o.Value().IsTrue() || dirExists(t.Path()) {
		return nil, nil
	}
	return NewDirectoryCreate(t, o), nil
}

// DefaultOptions is the provider of the options every target understands.
func DefaultOptions() config.OptionsProvider {
	return config.StaticProvider{
		ProviderName: "default",
		Factories: []config.OptionFactory{
			{Key: KeyShouldExist, New: NewShouldExistOption},
		},
	}
}

// Operations is the provider of the filestate operation types.
func Operations() engine.OperationsProvider {
	return operationsProvider{}
}

type operationsProvider struct{}

func (operationsProvider) Name() string { return "filestate" }

func (operationsProvider) Operations() []engine.OperationType {
	return []engine.OperationType{
		{
			Kind:  KindDirectoryCreate,
			Scope: engine.ScopeLocation,
			ForOption: func(ctx context.Context, ec *engine.ExecContext, t engine.Target, o config.Option) (engine.Operation, error) {
				se, ok := o.(*ShouldExistOption)
				if !ok {
					return nil, nil
				}
				return se.CreateRequiredOperation(ctx, ec, t, nil)
			},
		},
	}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
