package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/openfroyo/froyo-git/pkg/telemetry"
)

// Settings are the CLI settings read from FROYO_GIT_* variables. Flags
// override them.
type Settings struct {
	// StateDB is the SQLite run journal.
	StateDB string `env:"STATE_DB, default=.froyo-git/state.db" validate:"required"`

	GitActiveDefault    bool `env:"GIT_ACTIVE_DEFAULT, default=true"`
	RemoteActiveDefault bool `env:"REMOTE_ACTIVE_DEFAULT, default=true"`

	// HTTPTimeout bounds every hosting platform request.
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT, default=30s" validate:"gt=0"`

	// StarlarkTimeout bounds each starlark url expression.
	StarlarkTimeout time.Duration `env:"STARLARK_TIMEOUT, default=5s" validate:"gt=0"`

	// PolicyPaths are extra policy files or directories.
	PolicyPaths []string `env:"POLICY_PATHS"`

	// WatchDebounce is the quiet period before a changed document is applied.
	WatchDebounce time.Duration `env:"WATCH_DEBOUNCE, default=500ms" validate:"gte=0"`
}

// LoadSettings reads the settings through lookuper with every key prefixed
// by FROYO_GIT_.
func LoadSettings(ctx context.Context, lookuper envconfig.Lookuper) (*Settings, error) {
	var s Settings
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &s,
		Lookuper: envconfig.PrefixLookuper(telemetry.EnvPrefix, lookuper),
	}); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := validator.New().Struct(&s); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &s, nil
}

// override applies the global flags the user set explicitly.
func (s *Settings) override(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("state-db") {
		s.StateDB = stateDB
	}
	if flags.Changed("git-active-default") {
		s.GitActiveDefault = gitActiveDefault
	}
	if flags.Changed("remote-active-default") {
		s.RemoteActiveDefault = remoteActiveDefault
	}
}
