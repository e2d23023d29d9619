// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	// IsolationNative runs the interpreter on the host.
	IsolationNative IsolationMode = "native"
	// IsolationContainer runs the interpreter in a throwaway container.
	IsolationContainer IsolationMode = "container"

	// ContainerEnginePodman selects Podman.
	ContainerEnginePodman ContainerEngine = "podman"
	// ContainerEngineDocker selects Docker.
	ContainerEngineDocker ContainerEngine = "docker"
)

var (
	// ErrInvalidIsolationMode is wrapped by InvalidIsolationModeError.
	ErrInvalidIsolationMode = errors.New("invalid isolation mode")
	// ErrInvalidContainerEngine is wrapped by InvalidContainerEngineError.
	ErrInvalidContainerEngine = errors.New("invalid container engine")
	// ErrInvalidConfig is wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

type (
	// IsolationMode selects how interpreter processes are built.
	IsolationMode string

	// InvalidIsolationModeError reports an unknown IsolationMode.
	InvalidIsolationModeError struct {
		Value IsolationMode
	}

	// ContainerEngine selects the container CLI.
	ContainerEngine string

	// InvalidContainerEngineError reports an unknown ContainerEngine.
	InvalidContainerEngineError struct {
		Value ContainerEngine
	}

	// InvalidConfigError collects every field error of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// ScriptFolder holds {name}.py files and __inline_{key}.py files.
		ScriptFolder string `json:"script_folder" mapstructure:"script_folder"`
		// DefaultTimeout is in seconds and applies when a caller passes none.
		DefaultTimeout int `json:"default_timeout" mapstructure:"default_timeout"`
		// InstallTimeout is the floor, in seconds, for pip installs.
		InstallTimeout int               `json:"install_timeout" mapstructure:"install_timeout"`
		Interpreter    InterpreterConfig `json:"interpreter" mapstructure:"interpreter"`
		Cache          CacheConfig       `json:"cache" mapstructure:"cache"`
		Isolation      IsolationConfig   `json:"isolation" mapstructure:"isolation"`
		Log            LogConfig         `json:"log" mapstructure:"log"`
	}

	// InterpreterConfig pins the Python interpreter.
	InterpreterConfig struct {
		Path string `json:"path" mapstructure:"path"`
	}

	// CacheConfig locates the execution cache registry.
	CacheConfig struct {
		RegistryPath string `json:"registry_path" mapstructure:"registry_path"`
	}

	// IsolationConfig selects native or container execution.
	IsolationConfig struct {
		Mode   IsolationMode   `json:"mode" mapstructure:"mode"`
		Engine ContainerEngine `json:"engine" mapstructure:"engine"`
		Image  string          `json:"image" mapstructure:"image"`
	}

	// LogConfig sets the log level.
	LogConfig struct {
		Level string `json:"level" mapstructure:"level"`
	}
)

// Timeout returns DefaultTimeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.DefaultTimeout) * time.Second
}

// InstallFloor returns InstallTimeout as a duration.
func (c *Config) InstallFloor() time.Duration {
	return time.Duration(c.InstallTimeout) * time.Second
}

// Validate checks the rules the schema cannot see, such as values that came
// from environment overrides.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ScriptFolder) == "" {
		errs = append(errs, errors.New("script_folder must not be empty"))
	}
	if c.DefaultTimeout <= 0 {
		errs = append(errs, fmt.Errorf("default_timeout must be positive, got %d", c.DefaultTimeout))
	}
	if c.InstallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("install_timeout must be positive, got %d", c.InstallTimeout))
	}
	if err := c.Isolation.Mode.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Isolation.Engine.Validate(); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains(validLogLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level %q is not one of %s", c.Log.Level, strings.Join(validLogLevels, ", ")))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Unwrap exposes ErrInvalidConfig and every field error to errors.Is.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// Validate returns an error for anything but native or container.
func (m IsolationMode) Validate() error {
	switch m {
	case IsolationNative, IsolationContainer:
		return nil
	default:
		return &InvalidIsolationModeError{Value: m}
	}
}

func (e *InvalidIsolationModeError) Error() string {
	return fmt.Sprintf("invalid isolation mode %q (valid: native, container)", e.Value)
}

// Unwrap returns ErrInvalidIsolationMode for errors.Is() compatibility.
func (e *InvalidIsolationModeError) Unwrap() error { return ErrInvalidIsolationMode }

// Validate returns an error for anything but podman or docker.
func (ce ContainerEngine) Validate() error {
	switch ce {
	case ContainerEnginePodman, ContainerEngineDocker:
		return nil
	default:
		return &InvalidContainerEngineError{Value: ce}
	}
}

func (e *InvalidContainerEngineError) Error() string {
	return fmt.Sprintf("invalid container engine %q (valid: podman, docker)", e.Value)
}

// Unwrap returns ErrInvalidContainerEngine for errors.Is() compatibility.
func (e *InvalidContainerEngineError) Unwrap() error { return ErrInvalidContainerEngine }
