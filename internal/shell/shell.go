// Package shell turns a candidate string into a runnable command line and
// owns the one place a child process is started.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

var (
	ErrEmptyCommand   = errors.New("command cannot be empty")
	ErrInvalidCommand = errors.New("command contains invalid null byte")
	// ErrStart means the shell process could not be launched at all.
	ErrStart = errors.New("could not start shell")
)

// WaitDelay bounds how long Run waits after interrupting a cancelled child
// before killing it.
var WaitDelay = 5 * time.Second

type Stdio struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

type Result struct {
	ExitCode int
	// Interrupted is set when the context ended while the child was running.
	Interrupted bool
}

// Run executes command through the user's shell, blocking until the child
// exits. Once started, cancellation of ctx interrupts the child and still
// waits for it; the returned Result always describes the child's end state.
func Run(ctx context.Context, command string, stdio Stdio) (Result, error) {
	name, args := Invocation(command)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = orReader(stdio.Stdin, os.Stdin)
	cmd.Stdout = orWriter(stdio.Stdout, os.Stdout)
	cmd.Stderr = orWriter(stdio.Stderr, os.Stderr)
	cmd.Cancel = func() error {
		return interrupt(cmd.Process)
	}
	cmd.WaitDelay = WaitDelay

	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("%w: %s: %v", ErrStart, name, err)
	}

	err := cmd.Wait()
	result := Result{Interrupted: ctx.Err() != nil}
	if err == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if result.Interrupted {
		result.ExitCode = -1
		return result, nil
	}
	return Result{ExitCode: -1}, fmt.Errorf("wait for shell: %w", err)
}

func interrupt(p *os.Process) error {
	if runtime.GOOS != "windows" {
		if err := p.Signal(os.Interrupt); err == nil {
			return nil
		}
	}
	return p.Kill()
}

// Invocation picks $SHELL (falling back to sh) on Unix and %COMSPEC% on
// Windows.
func Invocation(command string) (string, []string) {
	if runtime.GOOS == "windows" {
		comspec := strings.TrimSpace(os.Getenv("COMSPEC"))
		if comspec == "" {
			comspec = "cmd"
		}
		return comspec, []string{"/C", command}
	}

	shell := strings.TrimSpace(os.Getenv("SHELL"))
	if shell != "" {
		if filepath.IsAbs(shell) {
			if _, err := os.Stat(shell); err == nil {
				return shell, []string{"-lc", command}
			}
		} else if resolved, err := exec.LookPath(shell); err == nil {
			return resolved, []string{"-lc", command}
		}
	}
	return "sh", []string{"-lc", command}
}

// NormalizeCommand strips markdown fences and prompt markers that remote
// suggestion services sometimes wrap around a command.
func NormalizeCommand(command string) (string, error) {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return "", ErrEmptyCommand
	}
	if strings.ContainsRune(trimmed, '\x00') {
		return "", ErrInvalidCommand
	}

	if strings.HasPrefix(trimmed, "```") {
		lines := strings.Split(trimmed, "\n")
		if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "```") {
			lines = lines[1:]
		}
		if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
			lines = lines[:len(lines)-1]
		}
		trimmed = strings.TrimSpace(strings.Join(lines, "\n"))
	}

	switch {
	case strings.HasPrefix(trimmed, "$ "):
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "$ "))
	case strings.HasPrefix(trimmed, "> "):
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "> "))
	}

	if trimmed == "" {
		return "", ErrEmptyCommand
	}
	return trimmed, nil
}

// HighRisk flags commands that deserve an extra warning before the prompt.
func HighRisk(command string) bool {
	low := strings.ToLower(strings.TrimSpace(command))
	for _, pattern := range highRiskPatterns {
		if strings.Contains(low, pattern) {
			return true
		}
	}
	return false
}

var highRiskPatterns = []string{
	"rm -rf",
	"mkfs",
	"dd if=",
	"shutdown",
	"reboot",
	"userdel",
	"chmod 777 /",
	":(){",
	"> /dev/sd",
}

func orReader(r, fallback io.Reader) io.Reader {
	if r == nil {
		return fallback
	}
	return r
}

func orWriter(w, fallback io.Writer) io.Writer {
	if w == nil {
		return fallback
	}
	return w
}
