// SPDX-License-Identifier: MPL-2.0

// Package issue turns failures into messages a user can act on.
//
// ActionableError carries the failed operation, the resource involved and a
// list of suggestions. The catalog in this package adds longer Markdown help
// cards for the failure kinds users hit most often (missing interpreter,
// rejected script, dependency install failure, timeouts), rendered with glamour.
package issue
