package gitstate

import (
	"github.com/openfroyo/froyo-git/pkg/config"
	"github.com/openfroyo/froyo-git/pkg/remote"
)

// Settings tune the git plugin.
type Settings struct {
	// GitActiveDefault applies when a git mapping has no active key.
	GitActiveDefault bool

	// RemoteActiveDefault applies when a remote item has no active key.
	RemoteActiveDefault bool

	// Gateways builds hosting platform clients. Nil means remote.New.
	Gateways remote.Factory

	// Starlark evaluates starlark: URL expressions. Nil uses a default
	// evaluator.
	Starlark *config.StarlarkEvaluator
}

// DefaultSettings returns settings with both active defaults on.
func DefaultSettings() Settings {
	return Settings{
		GitActiveDefault:    true,
		RemoteActiveDefault: true,
		Gateways:            remote.New,
	}
}

func (s Settings) gateway(opts remote.Options) (remote.Gateway, error) {
	if s.Gateways == nil {
		return remote.New(opts)
	}
	return s.Gateways(opts)
}
