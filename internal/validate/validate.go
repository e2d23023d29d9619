// SPDX-License-Identifier: MPL-2.0

package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// RuleEmpty rejects blank source.
	RuleEmpty           Rule = "empty"
	// RuleEntryPoint requires a def run(input) with at least one parameter.
	RuleEntryPoint      Rule = "entry-point"
	// RuleForbiddenImport rejects imports of os, sys, subprocess, shutil or socket.
	RuleForbiddenImport Rule = "forbidden-import"
	// RuleForbiddenCall rejects exec( and eval( anywhere in the source.
	RuleForbiddenCall   Rule = "forbidden-call"
	// RuleForbiddenToken rejects __import__.
	RuleForbiddenToken  Rule = "forbidden-token"
)

// ErrRejected is the sentinel wrapped by every *Error.
var ErrRejected = errors.New("script rejected")

var (
	// entryPointPattern requires at least one non-blank parameter.
	entryPointPattern = regexp.MustCompile(`def\s+run\s*\(\s*[^\s)]`)

	forbiddenModules = []string{"os", "sys", "subprocess", "shutil", "socket"}

	importPatterns = compileImportPatterns(forbiddenModules)

	forbiddenCalls = []string{"exec(", "eval("}

	forbiddenTokens = []string{"__import__"}
)

type (
	// Rule names the check that rejected a script.
	Rule string

	// Error reports the first rule a script violated.
	Error struct {
		Rule   Rule
		Detail string
	}

	// RuleInfo describes one check for documentation output.
	RuleInfo struct {
		Rule     Rule
		Summary  string
		Patterns []string
	}
)

func (e *Error) Error() string {
	switch e.Rule {
	case RuleEmpty:
		return "script is empty"
	case RuleEntryPoint:
		return "missing entry point: def run(input)"
	case RuleForbiddenImport:
		return "forbidden import: " + e.Detail
	case RuleForbiddenCall:
		return "forbidden call: " + e.Detail
	case RuleForbiddenToken:
		return "forbidden token: " + e.Detail
	default:
		return fmt.Sprintf("rule %s: %s", e.Rule, e.Detail)
	}
}

// Unwrap returns ErrRejected.
func (e *Error) Unwrap() error { return ErrRejected }

// Validate applies every rule in order and returns the first violation, or
// nil when the source is accepted. It does not touch the filesystem.
func Validate(source string) error {
	if strings.TrimSpace(source) == "" {
		return &Error{Rule: RuleEmpty}
	}

	if !entryPointPattern.MatchString(source) {
		return &Error{Rule: RuleEntryPoint}
	}

	for i, re := range importPatterns {
		if re.MatchString(source) {
			return &Error{Rule: RuleForbiddenImport, Detail: forbiddenModules[i]}
		}
	}

	for _, call := range forbiddenCalls {
		if strings.Contains(source, call) {
			return &Error{Rule: RuleForbiddenCall, Detail: call}
		}
	}

	for _, tok := range forbiddenTokens {
		if strings.Contains(source, tok) {
			return &Error{Rule: RuleForbiddenToken, Detail: tok}
		}
	}

	return nil
}

// Rules lists the checks in the order Validate applies them.
func Rules() []RuleInfo {
	return []RuleInfo{
		{Rule: RuleEmpty, Summary: "source must not be blank"},
		{Rule: RuleEntryPoint, Summary: "source must define run(input)", Patterns: []string{entryPointPattern.String()}},
		{Rule: RuleForbiddenImport, Summary: "modules that reach the process, filesystem or network", Patterns: append([]string(nil), forbiddenModules...)},
		{Rule: RuleForbiddenCall, Summary: "dynamic code execution", Patterns: append([]string(nil), forbiddenCalls...)},
		{Rule: RuleForbiddenToken, Summary: "dynamic imports", Patterns: append([]string(nil), forbiddenTokens...)},
	}
}

// compileImportPatterns matches both "import X" and "from X import" at word
// boundaries: "import osmosis" passes, "import os.path" does not.
func compileImportPatterns(modules []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(modules))
	for i, m := range modules {
		q := regexp.QuoteMeta(m)
		out[i] = regexp.MustCompile(`\bimport\s+` + q + `\b|\bfrom\s+` + q + `\b[\w.]*\s+import\b`)
	}
	return out
}
