// Package config loads syrup.yaml — the target binary path, the declared
// shared-variable symbols, the thread start-routine symbols, and the GDB
// binary to invoke — and watches it for edits so a long-lived session can
// pick up a changed variable list without restarting.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the unmarshaled form of syrup.yaml.
type Config struct {
	TargetPath          string   `mapstructure:"target"`
	TargetArgs          []string `mapstructure:"target_args"`
	GDBPath             string   `mapstructure:"gdb_path"`
	SharedVariables     []string `mapstructure:"shared_variables"`
	ThreadStartRoutines []string `mapstructure:"thread_start_routines"`
	CloneSyscallName    string   `mapstructure:"clone_syscall"`
	PredicateScript     string   `mapstructure:"predicate_script"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("gdb_path", "gdb")
	v.SetDefault("clone_syscall", "clone")
}

// Load reads and unmarshals path into a Config, returning the backing
// *viper.Viper too so the caller can pass it to NewWatcher for hot reload.
func Load(path string) (*Config, *viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	defaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	if cfg.TargetPath == "" {
		return nil, nil, fmt.Errorf("config: %s: target is required", path)
	}
	return &cfg, v, nil
}
