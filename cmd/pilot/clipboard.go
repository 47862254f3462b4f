package main

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	goruntime "runtime"
	"strings"
)

func copySuggestedCommand(w io.Writer, command string) {
	if err := copyToClipboard(command); err != nil {
		fmt.Fprintf(w, "pilot: could not copy command: %v\n", err)
		return
	}
	fmt.Fprintln(w, "pilot: command copied to clipboard")
}

func copyToClipboard(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return errors.New("empty command")
	}

	try := func(bin string, args ...string) error {
		path, err := exec.LookPath(bin)
		if err != nil {
			return err
		}
		cmd := exec.Command(path, args...)
		cmd.Stdin = strings.NewReader(trimmed)
		return cmd.Run()
	}

	var tools [][]string
	switch goruntime.GOOS {
	case "darwin":
		tools = [][]string{{"pbcopy"}}
	case "windows":
		tools = [][]string{{"clip"}}
	default:
		tools = [][]string{
			{"wl-copy"},
			{"xclip", "-selection", "clipboard"},
			{"xsel", "--clipboard", "--input"},
		}
	}
	for _, tool := range tools {
		if err := try(tool[0], tool[1:]...); err == nil {
			return nil
		}
	}
	return errors.New("no supported clipboard tool found")
}
