// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers cover script fixtures (WriteScript, MustWriteFile), the
// interpreter gate (RequirePython), isolated user directories (SetUserDirs),
// a controllable clock (FakeClock) and resource cleanup (MustClose).
package testutil
