// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"testing"
	"time"
)

// helperPolicy ignores the requested argv and runs TestHelperProcess instead,
// configured through GO_HELPER_* variables. It records every invocation.
type helperPolicy struct {
	env []string

	mu   sync.Mutex
	invs []Invocation
}

func (p *helperPolicy) Name() string { return "helper" }

func (p *helperPolicy) Command(ctx context.Context, inv Invocation) (*exec.Cmd, error) {
	p.mu.Lock()
	p.invs = append(p.invs, inv)
	p.mu.Unlock()
	return helperCommand(ctx, p.env...), nil
}

func (p *helperPolicy) invocations() []Invocation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Invocation(nil), p.invs...)
}

func helperCommand(ctx context.Context, env ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=^TestHelperProcess$", "--")
	cmd.Env = append([]string{"GO_WANT_HELPER_PROCESS=1"}, env...)
	return cmd
}

// TestHelperProcess is not a real test. It is the child process for the
// tests above.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	fmt.Fprint(os.Stdout, os.Getenv("GO_HELPER_STDOUT"))
	fmt.Fprint(os.Stderr, os.Getenv("GO_HELPER_STDERR"))

	if d, err := time.ParseDuration(os.Getenv("GO_HELPER_SLEEP")); err == nil {
		time.Sleep(d)
	}

	code, _ := strconv.Atoi(os.Getenv("GO_HELPER_EXIT_CODE"))
	os.Exit(code)
}
