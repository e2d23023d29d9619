// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/invowk/scriptrun/internal/issue"
	"github.com/invowk/scriptrun/pkg/cueutil"
)

const (
	// AppName is the application name.
	AppName = "scriptrun"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides.
	EnvPrefix = "SCRIPTRUN"

	// DefaultImage is the container image used when isolation.image is unset.
	DefaultImage = "python:3.12-slim"
)

//go:embed config_schema.cue
var configSchema []byte

// ConfigDir returns the scriptrun configuration directory: %APPDATA% on
// Windows, ~/Library/Application Support on macOS, $XDG_CONFIG_HOME
// (default ~/.config) elsewhere.
//
//nolint:revive // ConfigDir reads better than Dir at call sites
func ConfigDir() (string, error) {
	return configDirFor(runtime.GOOS, os.Getenv, os.UserHomeDir)
}

func configDirFor(goos string, getenv func(string) string, home func() (string, error)) (string, error) {
	var dir string
	switch goos {
	case "windows":
		dir = getenv("APPDATA")
		if dir == "" {
			dir = filepath.Join(getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		h, err := home()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(h, "Library", "Application Support")
	default:
		dir = getenv("XDG_CONFIG_HOME")
		if dir == "" {
			h, err := home()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			dir = filepath.Join(h, ".config")
		}
	}
	return filepath.Join(dir, AppName), nil
}

// DefaultConfig returns the built-in defaults. Paths that cannot be resolved
// fall back to relative ones.
func DefaultConfig() *Config {
	scripts := filepath.Join(AppName, "python_scripts")
	if dir, err := ConfigDir(); err == nil {
		scripts = filepath.Join(dir, "python_scripts")
	}
	registry := filepath.Join(AppName, "vm_cache.json")
	if dir, err := os.UserCacheDir(); err == nil {
		registry = filepath.Join(dir, AppName, "vm_cache.json")
	}

	return &Config{
		ScriptFolder:   scripts,
		DefaultTimeout: 30,
		InstallTimeout: 60,
		Cache:          CacheConfig{RegistryPath: registry},
		Isolation: IsolationConfig{
			Mode:   IsolationNative,
			Engine: ContainerEnginePodman,
			Image:  DefaultImage,
		},
		Log: LogConfig{Level: "info"},
	}
}

// loadWithOptions resolves, validates and decodes the configuration. It
// returns the path of the file it used, or "" for pure defaults.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	defaults := DefaultConfig()
	v.SetDefault("script_folder", defaults.ScriptFolder)
	v.SetDefault("default_timeout", defaults.DefaultTimeout)
	v.SetDefault("install_timeout", defaults.InstallTimeout)
	v.SetDefault("interpreter.path", defaults.Interpreter.Path)
	v.SetDefault("cache.registry_path", defaults.Cache.RegistryPath)
	v.SetDefault("isolation.mode", string(defaults.Isolation.Mode))
	v.SetDefault("isolation.engine", string(defaults.Isolation.Engine))
	v.SetDefault("isolation.image", defaults.Isolation.Image)
	v.SetDefault("log.level", defaults.Log.Level)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := resolveConfigFile(opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'scriptrun config show' to see the defaults").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ScriptFolder = expandHome(cfg.ScriptFolder)
	cfg.Cache.RegistryPath = expandHome(cfg.Cache.RegistryPath)
	cfg.Interpreter.Path = expandHome(cfg.Interpreter.Path)

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("Check " + EnvPrefix + "_* environment variables for typos").
			Wrap(err).
			BuildError()
	}
	return &cfg, path, nil
}

// resolveConfigFile applies the lookup order. An explicit path must exist.
func resolveConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	dir := opts.ConfigDirPath
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return "", err
		}
	}
	name := ConfigFileName + "." + ConfigFileExt
	if p := filepath.Join(dir, name); fileExists(p) {
		return p, nil
	}
	if p := filepath.Join(opts.BaseDir, name); fileExists(p) {
		return p, nil
	}
	return "", nil
}

// loadCUEIntoViper validates path against #Config and merges it into v.
// Fields are optional, so values need not be concrete.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	configMap, err := cueutil.DecodeMap(configSchema, data, "#Config",
		cueutil.WithFilename(path),
		cueutil.WithConcrete(false))
	if err != nil {
		return err
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// GenerateCUE renders cfg as a config.cue document.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// scriptrun configuration\n\n")
	fmt.Fprintf(&sb, "script_folder:   %q\n", cfg.ScriptFolder)
	fmt.Fprintf(&sb, "default_timeout: %d\n", cfg.DefaultTimeout)
	fmt.Fprintf(&sb, "install_timeout: %d\n", cfg.InstallTimeout)

	if cfg.Interpreter.Path != "" {
		fmt.Fprintf(&sb, "\ninterpreter: path: %q\n", cfg.Interpreter.Path)
	}
	fmt.Fprintf(&sb, "\ncache: registry_path: %q\n", cfg.Cache.RegistryPath)

	sb.WriteString("\nisolation: {\n")
	fmt.Fprintf(&sb, "\tmode:   %q\n", cfg.Isolation.Mode)
	fmt.Fprintf(&sb, "\tengine: %q\n", cfg.Isolation.Engine)
	fmt.Fprintf(&sb, "\timage:  %q\n", cfg.Isolation.Image)
	sb.WriteString("}\n")

	fmt.Fprintf(&sb, "\nlog: level: %q\n", cfg.Log.Level)
	return sb.String()
}

// Save writes cfg to {dir}/config.cue, creating dir if needed.
func Save(dir string, cfg *Config) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(GenerateCUE(cfg)), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}
