// SPDX-License-Identifier: MPL-2.0

package scripts

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Notifier asks the user to confirm destructive actions and reports their
// outcome.
type Notifier interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
	Notify(ctx context.Context, msg string)
}

// PromptNotifier confirms by reading y/N lines from In and writes to Out.
// AssumeYes skips the prompt.
type PromptNotifier struct {
	In        io.Reader
	Out       io.Writer
	AssumeYes bool

	once   sync.Once
	reader *bufio.Reader
}

// Confirm prints prompt and reads one answer. Only "y" and "yes" confirm.
func (p *PromptNotifier) Confirm(ctx context.Context, prompt string) (bool, error) {
	if p.AssumeYes {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.once.Do(func() { p.reader = bufio.NewReader(p.In) })

	fmt.Fprintf(p.Out, "%s [y/N] ", prompt)
	line, err := p.reader.ReadString('\n')
	if err != nil && line == "" {
		if err == io.EOF {
			return false, nil
		}
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Notify writes msg on its own line.
func (p *PromptNotifier) Notify(_ context.Context, msg string) {
	fmt.Fprintln(p.Out, msg)
}
