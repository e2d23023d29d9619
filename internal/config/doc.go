// SPDX-License-Identifier: MPL-2.0

// Package config loads scriptrun settings with Viper, using CUE as the file
// format.
//
// The file is looked up as the --config flag value, then
// {ConfigDir}/config.cue, then ./config.cue. Every file is validated against
// the embedded #Config schema (config_schema.cue) before it is merged over the
// defaults. SCRIPTRUN_* environment variables override file values, with "."
// in a key written as "_" (SCRIPTRUN_ISOLATION_MODE=container).
package config
