// SPDX-License-Identifier: MPL-2.0

// Package scripts runs named and inline Python scripts on behalf of a host.
//
// A Runner owns one script folder. Named scripts live there as {name}.py;
// inline code is persisted as __inline_{key}.py. Every request goes through
// the same pipeline: validate the source, decode the JSON arguments, make sure
// dependencies are installed, run the script through the execution cache and
// turn its stdout into a JSON result. Failures never escape as Go errors from
// the public methods; they come back inside the Result and render as
// {"error": "..."} envelopes at the boundary.
package scripts
