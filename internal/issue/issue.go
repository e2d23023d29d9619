// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Id identifies a catalog entry.
type Id int

const (
	InterpreterNotFoundId Id = iota + 1
	ScriptNotFoundId
	ValidationFailedId
	DependencyInstallFailedId
	ScriptTimeoutId
	ScriptFailedId
	ConfigLoadFailedId
	ContainerEngineNotFoundId
)

type (
	MarkdownMsg string

	HttpLink string

	// Issue is a catalog entry: a Markdown help card plus reference links.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
	}
)

// render is swapped out by tests.
var render = glamour.Render

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

// Title returns the text of the card's first Markdown heading.
func (i *Issue) Title() string {
	for _, line := range strings.Split(string(i.mdMsg), "\n") {
		if title, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
			return title
		}
	}
	return ""
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// Render renders the help card with the given glamour style ("dark",
// "light", "notty", or a path to a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	interpreterNotFoundIssue = &Issue{
		id: InterpreterNotFoundId,
		mdMsg: `
# No Python interpreter found

Every lookup strategy came back empty: environment variables, the ` + "`py`" + ` launcher,
` + "`python3`/`python`" + ` on PATH, and the platform registry.

## Things you can try
- Install Python 3 and make sure it is on your PATH.
- Point scriptrun at a specific interpreter in your config file:
~~~cue
interpreter: path: "/usr/local/bin/python3"
~~~
- Check what scriptrun resolves:
~~~
$ scriptrun interpreter
~~~`,
		docLinks: []HttpLink{"https://www.python.org/downloads/"},
	}

	scriptNotFoundIssue = &Issue{
		id: ScriptNotFoundId,
		mdMsg: `
# Script not found

Named scripts are looked up as ` + "`{script_folder}/{name}.py`" + `. The name must be a
plain file stem: no directory separators and no ` + "`..`" + `.

## Things you can try
- List the scripts scriptrun can see:
~~~
$ scriptrun list
~~~
- Check the configured ` + "`script_folder`" + `:
~~~
$ scriptrun config show
~~~`,
	}

	validationFailedIssue = &Issue{
		id: ValidationFailedId,
		mdMsg: `
# Script rejected

Scripts must define an entry point and stay away from process, filesystem and
network modules.

## Rules
- The source must not be blank.
- It must define ` + "`def run(input):`" + `.
- It must not import ` + "`os`, `sys`, `subprocess`, `shutil` or `socket`" + `.
- It must not call ` + "`exec(`" + ` or ` + "`eval(`" + ` and must not use ` + "`__import__`" + `.

## Example
~~~python
def run(input):
    return {"x": input.get("x", 0) + 1}
~~~`,
	}

	dependencyInstallFailedIssue = &Issue{
		id: DependencyInstallFailedId,
		mdMsg: `
# Dependency installation failed

scriptrun discovers third-party imports with ` + "`pipreqs`" + ` (or reads a co-located
` + "`requirements.txt`/`pyproject.toml`" + `) and installs them with ` + "`pip --user`" + `.

## Things you can try
- Make sure pipreqs is available:
~~~
$ python3 -m pip install --user pipreqs
~~~
- Pin the dependencies yourself in a ` + "`requirements.txt`" + ` next to the script.
- Preview what would be installed:
~~~
$ scriptrun deps generate <name>
~~~`,
		docLinks: []HttpLink{"https://pypi.org/project/pipreqs/"},
	}

	scriptTimeoutIssue = &Issue{
		id: ScriptTimeoutId,
		mdMsg: `
# Script timed out

The interpreter and every process it started were killed when the time limit
expired. Partial output is discarded.

## Things you can try
- Raise the limit for one run with ` + "`--timeout`" + `.
- Raise the default in your config file:
~~~cue
default_timeout: 120
~~~`,
	}

	scriptFailedIssue = &Issue{
		id: ScriptFailedId,
		mdMsg: `
# Script failed

A run only counts as successful when the interpreter exits with code 0 and
writes nothing to stderr. Warnings printed to stderr therefore fail the run.

## Things you can try
- Read the error text: it holds the interpreter's stderr verbatim.
- Silence noisy warnings inside the script, or print diagnostics to stdout instead.`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration

The config file is CUE and is validated against a schema before use.

## Things you can try
- Show the effective configuration:
~~~
$ scriptrun config show
~~~
- Compare your file with the defaults:
~~~cue
script_folder:   "~/.config/scriptrun/python_scripts"
default_timeout: 30
isolation: mode: "native"
~~~`,
		docLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# No container engine available

Container isolation needs Podman or Docker on PATH.

## Things you can try
- Install Podman or Docker.
- Switch back to native execution:
~~~cue
isolation: mode: "native"
~~~`,
		docLinks: []HttpLink{"https://podman.io/docs/installation"},
	}

	issues = map[Id]*Issue{
		interpreterNotFoundIssue.Id():     interpreterNotFoundIssue,
		scriptNotFoundIssue.Id():          scriptNotFoundIssue,
		validationFailedIssue.Id():        validationFailedIssue,
		dependencyInstallFailedIssue.Id(): dependencyInstallFailedIssue,
		scriptTimeoutIssue.Id():           scriptTimeoutIssue,
		scriptFailedIssue.Id():            scriptFailedIssue,
		configLoadFailedIssue.Id():        configLoadFailedIssue,
		containerEngineNotFoundIssue.Id(): containerEngineNotFoundIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	out := maps.Values(issues)
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id - b.id) })
	return out
}

// Get returns the entry for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
