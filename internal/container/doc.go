// SPDX-License-Identifier: MPL-2.0

// Package container drives the Docker and Podman CLIs.
//
// Both engines embed BaseCLIEngine, which builds argument lists and creates
// exec.Cmd values through an injectable ExecCommandFunc. Select an engine
// with NewEngine, which falls back to the other engine when the preferred
// one is missing, or with AutoDetectEngine.
//
// Only Linux images are supported.
package container
