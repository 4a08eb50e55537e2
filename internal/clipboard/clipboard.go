// Package clipboard serializes access to the system clipboard through
// configured copy/paste commands.
package clipboard

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync/atomic"
	"time"
)

// Client wraps the configured clipboard commands and tracks the
// internal-operation guard consulted by clipboard watchers.
type Client struct {
	copyArgv  []string
	pasteArgv []string

	internal atomic.Int32
}

// New builds a client from parsed copy/paste argv forms.
func New(copyArgv []string, pasteArgv []string) *Client {
	return &Client{copyArgv: copyArgv, pasteArgv: pasteArgv}
}

// Set writes text to the system clipboard.
func (c *Client) Set(ctx context.Context, text string) error {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := runCommandWithInput(runCtx, c.copyArgv, text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	return nil
}

// Get reads the current clipboard contents.
func (c *Client) Get(ctx context.Context) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	out, err := runCommandOutput(runCtx, c.pasteArgv)
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}
	return out, nil
}

// BeginInternal marks a clipboard mutation as daemon-internal so watchers
// ignore it. The returned func ends the window.
func (c *Client) BeginInternal() func() {
	c.internal.Add(1)
	return func() { c.internal.Add(-1) }
}

// InternalActive reports whether an internal clipboard operation is bracketed.
func (c *Client) InternalActive() bool {
	return c.internal.Load() > 0
}

// runCommandWithInput executes argv and optionally writes input to stdin.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin for %s: %w", argv[0], err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start command %s: %w", argv[0], err)
	}

	if input != "" {
		if _, err := stdin.Write([]byte(input)); err != nil {
			_ = stdin.Close()
			_ = cmd.Wait()
			return fmt.Errorf("write stdin for %s: %w", argv[0], err)
		}
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait for %s: %w", argv[0], err)
	}
	return nil
}

// runCommandOutput executes argv and returns its stdout.
func runCommandOutput(ctx context.Context, argv []string) (string, error) {
	if len(argv) == 0 {
		return "", fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("run %s: %w", argv[0], err)
	}
	return stdout.String(), nil
}
