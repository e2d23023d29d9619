// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates CUE documents against an embedded schema and
// decodes them into Go values.
//
// Every parse follows the same three steps: compile the schema, compile and
// unify the user document with a root definition, then validate and decode.
//
//	//go:embed metadata_schema.cue
//	var schema []byte
//
//	res, err := cueutil.ParseAndDecode[Metadata](schema, data, "#Metadata",
//	    cueutil.WithFilename("report.meta.cue"))
//	if err != nil {
//	    return err // *cueutil.Error with per-field paths
//	}
//	meta := res.Value
package cueutil
