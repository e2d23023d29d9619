// SPDX-License-Identifier: MPL-2.0

package scripts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/invowk/scriptrun/internal/runtime"
	"github.com/invowk/scriptrun/internal/testutil"
)

// echoExecutor answers every run with the script file name and the arguments
// it was given, so tests can detect cross-talk between concurrent runs.
type echoExecutor struct {
	calls    atomic.Int32
	timeouts sync.Map

	// respond overrides the echo when set.
	respond func(scriptPath, argsJSON string) *runtime.Result
}

func (e *echoExecutor) RunPrepared(_ context.Context, scriptPath, argsJSON string, timeout time.Duration) *runtime.Result {
	e.calls.Add(1)
	e.timeouts.Store(scriptPath, timeout)
	if e.respond != nil {
		return e.respond(scriptPath, argsJSON)
	}
	out := fmt.Sprintf(`{"script":%q,"args":%s}`, filepath.Base(scriptPath), argsJSON)
	return &runtime.Result{Output: out}
}

type countingResolver struct {
	calls atomic.Int32
	err   error
}

func (c *countingResolver) Ensure(context.Context, string, string, time.Duration) error {
	c.calls.Add(1)
	return c.err
}

const addOne = "def run(input):\n    return {\"x\": input[\"x\"] + 1}\n"

func writeScript(t *testing.T, dir, name, source string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func envelope(t *testing.T, r Result) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(r.Envelope(), &m); err != nil {
		t.Fatalf("envelope %q is not a JSON object: %v", r.Envelope(), err)
	}
	return m
}

func TestRunScript_Success(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeScript(t, dir, "add_one.py", addOne)
	exec := &echoExecutor{}
	resolver := &countingResolver{}
	r := New(dir, exec, WithDependencies(resolver))

	res := r.RunScript(context.Background(), "add_one", ` { "x" : 5 } `, 5*time.Second)
	if res.Failed() {
		t.Fatalf("RunScript() error = %v", res.Err)
	}
	if got := string(res.Output); got != `{"script":"add_one.py","args":{"x":5}}` {
		t.Errorf("Output = %s", got)
	}
	if res.ExecutionID == "" {
		t.Error("ExecutionID not set")
	}
	if resolver.calls.Load() != 1 || exec.calls.Load() != 1 {
		t.Errorf("resolver calls = %d, executor calls = %d", resolver.calls.Load(), exec.calls.Load())
	}
}

func TestRunScript_NotFound(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeScript(t, dir, "ok.py", addOne)
	testutil.MustMkdirAll(t, filepath.Join(dir, "pkg.py"), 0o755)
	outside := t.TempDir()
	writeScript(t, outside, "secret.py", addOne)

	names := []string{"", "missing", "../secret", "sub/ok", `sub\ok`, "..", "ok.py", "pkg", "C:ok"}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			exec := &echoExecutor{}
			res := New(dir, exec).RunScript(context.Background(), name, "{}", time.Second)
			if !errors.Is(res.Err, ErrNotFound) {
				t.Fatalf("RunScript(%q) error = %v, want ErrNotFound", name, res.Err)
			}
			if got := envelope(t, res)["error"]; got != fmt.Sprintf("script '%s' not found", name) {
				t.Errorf("error = %q", got)
			}
			if exec.calls.Load() != 0 {
				t.Error("executor called for an unresolved script")
			}
		})
	}
}

func TestResolve_SymlinkEscape(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	outside := writeScript(t, t.TempDir(), "secret.py", addOne)
	if err := os.Symlink(outside, filepath.Join(dir, "link.py")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	writeScript(t, dir, "real.py", addOne)
	if err := os.Symlink(filepath.Join(dir, "real.py"), filepath.Join(dir, "alias.py")); err != nil {
		t.Fatal(err)
	}

	r := New(dir, &echoExecutor{})
	if _, err := r.Resolve("link"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(link) error = %v, want ErrNotFound", err)
	}
	if _, err := r.Resolve("alias"); err != nil {
		t.Errorf("Resolve(alias) error = %v", err)
	}
}

func TestRunScript_ForbiddenImportNeverRuns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeScript(t, dir, "evil.py", "import os\n\ndef run(input):\n    return os.listdir('/')\n")
	exec := &echoExecutor{}
	resolver := &countingResolver{}

	res := New(dir, exec, WithDependencies(resolver)).RunScript(context.Background(), "evil", "{}", time.Second)
	if KindOf(res.Err) != KindValidation {
		t.Fatalf("kind = %s, err = %v", KindOf(res.Err), res.Err)
	}
	if got := envelope(t, res)["error"]; got != "script validation failed: forbidden import: os" {
		t.Errorf("error = %q", got)
	}
	if exec.calls.Load() != 0 || resolver.calls.Load() != 0 {
		t.Errorf("executor calls = %d, resolver calls = %d; want none", exec.calls.Load(), resolver.calls.Load())
	}
}

func TestRunScript_Arguments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     string
		wantArgs string
		wantErr  error
	}{
		{name: "blank", args: "  ", wantArgs: "{}"},
		{name: "object", args: `{"a": [1, 2]}`, wantArgs: `{"a":[1,2]}`},
		{name: "unicode kept", args: `{"s":"<é>"}`, wantArgs: `{"s":"<é>"}`},
		{name: "array", args: `[1]`, wantErr: ErrInvalidArgs},
		{name: "null", args: `null`, wantErr: ErrInvalidArgs},
		{name: "number", args: `5`, wantErr: ErrInvalidArgs},
		{name: "garbage", args: `{x:1}`, wantErr: ErrInvalidArgs},
	}

	dir := t.TempDir()
	writeScript(t, dir, "s.py", addOne)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got string
			exec := &echoExecutor{respond: func(_, args string) *runtime.Result {
				got = args
				return &runtime.Result{Output: "1"}
			}}
			res := New(dir, exec).RunScript(context.Background(), "s", tt.args, time.Second)

			if tt.wantErr != nil {
				if !errors.Is(res.Err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", res.Err, tt.wantErr)
				}
				if envelope(t, res)["error"] != "invalid JSON arguments" {
					t.Errorf("envelope = %s", res.Envelope())
				}
				return
			}
			if res.Err != nil {
				t.Fatalf("error = %v", res.Err)
			}
			if got != tt.wantArgs {
				t.Errorf("executor got args %q, want %q", got, tt.wantArgs)
			}
		})
	}
}

func TestRunScript_OutputWrapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		output string
		want   string
	}{
		{output: `{"x": 6}`, want: `{"x": 6}`},
		{output: `[1,2]`, want: `[1,2]`},
		{output: `"quoted"`, want: `"quoted"`},
		{output: `hello`, want: `{"result":"hello"}`},
		{output: ``, want: `{"result":""}`},
		{output: `{"partial":`, want: `{"result":"{\"partial\":"}`},
	}

	dir := t.TempDir()
	writeScript(t, dir, "s.py", addOne)

	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			t.Parallel()

			exec := &echoExecutor{respond: func(string, string) *runtime.Result {
				return &runtime.Result{Output: tt.output}
			}}
			res := New(dir, exec).RunScript(context.Background(), "s", "{}", time.Second)
			if res.Err != nil {
				t.Fatal(res.Err)
			}
			if got := res.String(); got != tt.want {
				t.Errorf("envelope = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRunScript_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		resolver *countingResolver
		result   *runtime.Result
		wantKind Kind
		wantMsg  string
	}{
		{
			name:     "script error",
			result:   &runtime.Result{ExitCode: 1, Error: &runtime.ScriptError{ExitCode: 1, Stderr: "KeyError: 'x'"}},
			wantKind: KindRuntime,
			wantMsg:  "KeyError: 'x'",
		},
		{
			name:     "timeout",
			result:   &runtime.Result{ExitCode: -1, Error: &runtime.TimeoutError{Target: "script", Timeout: time.Second}},
			wantKind: KindTimeout,
			wantMsg:  "script timed out after 1s",
		},
		{
			name:     "dependencies",
			resolver: &countingResolver{err: errors.New("pip install failed: no network")},
			wantKind: KindRuntime,
			wantMsg:  "pip install failed: no network",
		},
	}

	dir := t.TempDir()
	writeScript(t, dir, "s.py", addOne)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			exec := &echoExecutor{respond: func(string, string) *runtime.Result { return tt.result }}
			opts := []Option{}
			if tt.resolver != nil {
				opts = append(opts, WithDependencies(tt.resolver))
			}
			res := New(dir, exec, opts...).RunScript(context.Background(), "s", "{}", time.Second)

			if KindOf(res.Err) != tt.wantKind {
				t.Errorf("kind = %s, want %s", KindOf(res.Err), tt.wantKind)
			}
			if got := envelope(t, res)["error"]; got != tt.wantMsg {
				t.Errorf("error = %q, want %q", got, tt.wantMsg)
			}
			if tt.resolver != nil && exec.calls.Load() != 0 {
				t.Error("script ran after dependency failure")
			}
		})
	}
}

func TestRunScript_DefaultTimeout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeScript(t, dir, "s.py", addOne)
	exec := &echoExecutor{}

	New(dir, exec, WithDefaultTimeout(7*time.Second)).RunScript(context.Background(), "s", "{}", 0)
	if got, _ := exec.timeouts.Load(path); got != 7*time.Second {
		t.Errorf("timeout = %v, want 7s", got)
	}

	New(dir, exec).RunScript(context.Background(), "s", "{}", -1)
	if got, _ := exec.timeouts.Load(path); got != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", got, DefaultTimeout)
	}
}

func TestRunScript_BOMStripped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeScript(t, dir, "bom.py", "\uFEFF"+addOne)
	res := New(dir, &echoExecutor{}).RunScript(context.Background(), "bom", `{"x":1}`, time.Second)
	if res.Err != nil {
		t.Fatalf("error = %v", res.Err)
	}
}

func TestRunScript_ConcurrentNoCrossTalk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, n := range []string{"a", "b", "c"} {
		writeScript(t, dir, n+".py", addOne)
	}
	r := New(dir, &echoExecutor{})

	var wg sync.WaitGroup
	for i := range 30 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := []string{"a", "b", "c"}[i%3]
			res := r.RunScript(context.Background(), name, fmt.Sprintf(`{"i":%d}`, i), time.Second)
			want := fmt.Sprintf(`{"script":"%s.py","args":{"i":%d}}`, name, i)
			if string(res.Output) != want {
				t.Errorf("run %d got %s, want %s", i, res.Output, want)
			}
		}()
	}
	wg.Wait()
}

func TestValidateAndSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeScript(t, dir, "good.py", addOne)
	writeScript(t, dir, "bad.py", "print('no entry point')\n")
	r := New(dir, &echoExecutor{})

	if err := r.Validate("good"); err != nil {
		t.Errorf("Validate(good) = %v", err)
	}
	if err := r.Validate("bad"); KindOf(err) != KindValidation {
		t.Errorf("Validate(bad) = %v", err)
	}
	if err := r.Validate("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Validate(nope) = %v", err)
	}

	path, src, err := r.Source("good")
	if err != nil || src != addOne || filepath.Base(path) != "good.py" {
		t.Errorf("Source() = %q, %q, %v", path, src, err)
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want Kind
	}{
		{err: nil, want: KindNone},
		{err: &NotFoundError{Name: "x"}, want: KindNotFound},
		{err: ErrInvalidArgs, want: KindInput},
		{err: ErrNoCode, want: KindInput},
		{err: fmt.Errorf("%w: disk full", ErrPersist), want: KindStorage},
		{err: &runtime.TimeoutError{Target: "script"}, want: KindTimeout},
		{err: context.Canceled, want: KindCanceled},
		{err: errors.New("other"), want: KindRuntime},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
	if Kind(99).String() != "unknown" || KindDependency.String() != "dependency" {
		t.Error("Kind.String() mismatch")
	}
}

func TestResult_Envelope(t *testing.T) {
	t.Parallel()

	ok := Result{Output: []byte(`{"x":6}`)}
	if ok.String() != `{"x":6}` || ok.Failed() {
		t.Errorf("success envelope = %s", ok)
	}

	bad := Result{Err: errors.New(`quote " and <tag>`)}
	var m map[string]string
	if err := json.Unmarshal(bad.Envelope(), &m); err != nil || m["error"] != `quote " and <tag>` {
		t.Errorf("failure envelope = %s", bad)
	}
	if !strings.HasPrefix(bad.String(), `{"error":`) {
		t.Errorf("failure envelope = %s", bad)
	}
}
