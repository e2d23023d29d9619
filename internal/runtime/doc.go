// SPDX-License-Identifier: MPL-2.0

// Package runtime spawns Python interpreters and captures their output.
//
// Executor runs either a script file, through a small launcher that calls the
// script's run(input) function with a decoded JSON argument, or a module
// (python -m). Each call gets its own interpreter process, its own timeout
// and, on Unix, its own process group, so a timeout kills everything the
// script started.
//
// How the process is built is delegated to an IsolationPolicy: NativePolicy
// runs the interpreter on the host, ContainerPolicy runs it inside a
// throwaway Docker or Podman container.
package runtime
