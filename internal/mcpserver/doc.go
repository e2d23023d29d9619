// SPDX-License-Identifier: MPL-2.0

// Package mcpserver exposes the script runner as Model Context Protocol
// tools over stdio.
package mcpserver
