// SPDX-License-Identifier: MPL-2.0

package runtime

// launcherSource is passed to the interpreter with -c. It loads the script
// from argv[1] under its own module name, decodes argv[2] as JSON (blank
// means {}), calls run(input) and writes the return value to stdout: strings
// verbatim, everything else as JSON, None as nothing.
//
// The script sees sys.argv == [scriptPath, argsJSON], matching a plain
// "python script.py args" invocation.
const launcherSource = `import importlib.util, json, os.path, sys
_path, _raw = sys.argv[1], (sys.argv[2] if len(sys.argv) > 2 else "")
sys.argv = sys.argv[1:]
sys.path.insert(0, os.path.dirname(os.path.abspath(_path)))
_spec = importlib.util.spec_from_file_location("__scriptrun_main__", _path)
_mod = importlib.util.module_from_spec(_spec)
_spec.loader.exec_module(_mod)
_out = _mod.run(json.loads(_raw) if _raw.strip() else {})
if _out is not None:
    sys.stdout.write(_out if isinstance(_out, str) else json.dumps(_out, default=str))
    sys.stdout.flush()
`

// launcherPlaceholder stands in for launcherSource in logged command lines.
const launcherPlaceholder = "<launcher>"

// ScriptArgv builds the argv that runs scriptPath's run(input) with argsJSON.
func ScriptArgv(interp, scriptPath, argsJSON string) []string {
	return []string{interp, "-c", launcherSource, scriptPath, argsJSON}
}

// ModuleArgv builds the argv for "python -m module args...".
func ModuleArgv(interp, module string, args []string) []string {
	return append([]string{interp, "-m", module}, args...)
}

// displayArgv hides the launcher body so logged command lines stay readable.
func displayArgv(argv []string) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		if a == launcherSource {
			a = launcherPlaceholder
		}
		out[i] = a
	}
	return out
}
