// SPDX-License-Identifier: MPL-2.0

//go:build !windows && !darwin

package interpreter

import "context"

// registryCandidates has nothing to offer on platforms without an install registry.
func registryCandidates(_ context.Context) []string {
	return nil
}
