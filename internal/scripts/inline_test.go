// SPDX-License-Identifier: MPL-2.0

package scripts

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/invowk/scriptrun/internal/deps"
	"github.com/invowk/scriptrun/internal/runtime"
)

// noDepsRunner plays a pipreqs that finds nothing to install.
type noDepsRunner struct{}

func (noDepsRunner) RunModule(context.Context, string, string, []string, string, time.Duration) *runtime.Result {
	return &runtime.Result{}
}

func newInlineResolver() *deps.Resolver {
	return deps.New(noDepsRunner{}, deps.WithInterpreter(func(context.Context) (string, error) {
		return "python3", nil
	}))
}

func TestRunInline_StableIdentity(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	exec := &echoExecutor{}
	r := New(dir, exec)

	first := r.RunInline(context.Background(), addOne, `{"x":1}`, time.Second, "")
	if first.Err != nil {
		t.Fatal(first.Err)
	}
	path := r.InlinePath(addOne, "")
	if filepath.Base(path) != "__inline_"+deps.ContentHash(addOne)+".py" {
		t.Errorf("inline path = %s", path)
	}

	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, past, past); err != nil {
		t.Fatal(err)
	}
	second := r.RunInline(context.Background(), addOne, `{"x":2}`, time.Second, "")
	if second.Err != nil {
		t.Fatal(second.Err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(past) {
		t.Error("identical inline code was rewritten")
	}
	if files, _ := r.InlineScripts(); len(files) != 1 {
		t.Errorf("inline files = %v, want one", files)
	}
}

func TestInlineKey(t *testing.T) {
	t.Parallel()

	hash := deps.ContentHash(addOne)
	tests := []struct {
		key  string
		want string
	}{
		{key: "", want: hash},
		{key: "report", want: "report"},
		{key: "my key!", want: "my_key"},
		{key: "__a-b.c__", want: "a_b_c"},
		{key: "../../etc", want: "etc"},
		{key: "日本", want: "日本"},
		{key: "!!!", want: hash},
	}

	for _, tt := range tests {
		if got := InlineKey(addOne, tt.key); got != tt.want {
			t.Errorf("InlineKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestRunInline_KeyedOverwrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r := New(dir, &echoExecutor{}, WithDependencies(newInlineResolver()))
	v2 := addOne + "\n# v2\n"

	for _, code := range []string{addOne, v2} {
		if res := r.RunInline(context.Background(), code, "{}", time.Second, "report"); res.Err != nil {
			t.Fatal(res.Err)
		}
	}

	path := filepath.Join(dir, "__inline_report.py")
	data, err := os.ReadFile(path)
	if err != nil || string(data) != v2 {
		t.Fatalf("inline file = %q, %v", data, err)
	}
	if !deps.Satisfied(path, v2) {
		t.Error("no marker for the current content")
	}

	orphans, err := deps.Orphans(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(orphans) != 1 || orphans[0] != deps.MarkerPath(path, addOne) {
		t.Errorf("Orphans() = %v, want the v1 marker", orphans)
	}
}

func TestRunInline_Rejections(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	exec := &echoExecutor{}
	r := New(dir, exec)

	tests := []struct {
		name string
		code string
		args string
		want error
	}{
		{name: "blank code", code: " \n\t", args: "{}", want: ErrNoCode},
		{name: "bad args", code: addOne, args: "[]", want: ErrInvalidArgs},
	}
	for _, tt := range tests {
		res := r.RunInline(context.Background(), tt.code, tt.args, time.Second, "")
		if !errors.Is(res.Err, tt.want) {
			t.Errorf("%s: error = %v, want %v", tt.name, res.Err, tt.want)
		}
	}

	res := r.RunInline(context.Background(), "import subprocess\ndef run(input):\n    return 1\n", "{}", time.Second, "")
	if KindOf(res.Err) != KindValidation {
		t.Errorf("forbidden import: error = %v", res.Err)
	}

	if files, _ := r.InlineScripts(); len(files) != 0 {
		t.Errorf("rejected code was persisted: %v", files)
	}
	if exec.calls.Load() != 0 {
		t.Error("executor called for rejected code")
	}
}

func TestRunInline_PersistFailure(t *testing.T) {
	t.Parallel()

	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	exec := &echoExecutor{}

	res := New(blocker, exec).RunInline(context.Background(), addOne, "{}", time.Second, "")
	if KindOf(res.Err) != KindStorage {
		t.Fatalf("error = %v, kind %s", res.Err, KindOf(res.Err))
	}
	if msg := envelope(t, res)["error"].(string); !strings.HasPrefix(msg, "failed to persist inline script: ") {
		t.Errorf("error = %q", msg)
	}
	if exec.calls.Load() != 0 {
		t.Error("executor called after persist failure")
	}
}

func TestRunInline_ConcurrentSameKey(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r := New(dir, &echoExecutor{})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res := r.RunInline(context.Background(), addOne, "{}", time.Second, "shared"); res.Err != nil {
				t.Error(res.Err)
			}
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(filepath.Join(dir, "__inline_shared.py"))
	if err != nil || string(data) != addOne {
		t.Errorf("inline file = %q, %v", data, err)
	}
}

// gatedExecutor holds the first run until proceed is closed, then reports
// the file content it was asked to run.
type gatedExecutor struct {
	first   atomic.Bool
	entered chan struct{}
	proceed chan struct{}
}

func (g *gatedExecutor) RunPrepared(_ context.Context, scriptPath, _ string, _ time.Duration) *runtime.Result {
	if g.first.CompareAndSwap(false, true) {
		close(g.entered)
		<-g.proceed
	}
	data, err := os.ReadFile(scriptPath)
	if err != nil {
		return runtime.NewErrorResult(err)
	}
	out, _ := json.Marshal(map[string]string{"ran": string(data)})
	return &runtime.Result{Output: string(out)}
}

func TestRunInline_SameKeyDifferentCodeRunsOwnCode(t *testing.T) {
	t.Parallel()

	const (
		codeA = "def run(input):\n    return 'A'\n"
		codeB = "def run(input):\n    return 'B'\n"
	)
	exec := &gatedExecutor{entered: make(chan struct{}), proceed: make(chan struct{})}
	r := New(t.TempDir(), exec)

	ran := func(res Result) string {
		t.Helper()
		if res.Err != nil {
			t.Fatalf("RunInline: %v", res.Err)
		}
		var got map[string]string
		if err := json.Unmarshal(res.Output, &got); err != nil {
			t.Fatalf("output %s: %v", res.Output, err)
		}
		return got["ran"]
	}

	resA := make(chan Result, 1)
	go func() { resA <- r.RunInline(context.Background(), codeA, "{}", time.Second, "k") }()
	<-exec.entered

	resB := make(chan Result, 1)
	go func() { resB <- r.RunInline(context.Background(), codeB, "{}", time.Second, "k") }()

	select {
	case <-resB:
		t.Fatal("second run of the same inline file finished while the first was still running")
	case <-time.After(100 * time.Millisecond):
	}
	close(exec.proceed)

	if got := ran(<-resA); got != codeA {
		t.Errorf("caller A ran %q, want its own code %q", got, codeA)
	}
	if got := ran(<-resB); got != codeB {
		t.Errorf("caller B ran %q, want its own code %q", got, codeB)
	}
}
