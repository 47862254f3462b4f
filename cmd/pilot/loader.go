package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ashwch/syntaxpilot/internal/resolver"
	"github.com/ashwch/syntaxpilot/internal/ui"
)

// withLoader runs fn while a spinner is drawn on w. The spinner only
// appears after a short delay so fast lookups stay quiet.
func withLoader[T any](opts options, w io.Writer, label string, fn func() (T, error)) (T, error) {
	if !loaderEnabled(opts, w) {
		return fn()
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		renderLoader(w, label, done)
	}()

	value, err := fn()
	close(done)
	wg.Wait()
	return value, err
}

func loaderEnabled(opts options, w io.Writer) bool {
	if opts.JSON || opts.Quiet {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("PILOT_LOADER"))) {
	case "0", "off", "false", "no":
		return false
	}
	f, ok := w.(*os.File)
	return ok && ui.IsTerminal(f)
}

func renderLoader(w io.Writer, label string, done <-chan struct{}) {
	delay := time.NewTimer(180 * time.Millisecond)
	defer delay.Stop()
	select {
	case <-done:
		return
	case <-delay.C:
	}

	frames := []string{"·  ", "·· ", "···", " ··", "  ·"}
	ticker := time.NewTicker(120 * time.Millisecond)
	defer ticker.Stop()

	for i := 0; ; i = (i + 1) % len(frames) {
		fmt.Fprintf(w, "\r%s %s\x1b[K", frames[i], label)
		select {
		case <-done:
			fmt.Fprint(w, "\r\x1b[K")
			return
		case <-ticker.C:
		}
	}
}

// loaderStrategy shows the spinner while the wrapped strategy looks up a
// candidate. The spinner is cleared before the gate prompts.
type loaderStrategy struct {
	resolver.Strategy
	opts options
	w    io.Writer
}

func (s loaderStrategy) Lookup(ctx context.Context, query string) (resolver.Candidate, bool, error) {
	type found struct {
		candidate resolver.Candidate
		ok        bool
	}
	result, err := withLoader(s.opts, s.w, "finding a command", func() (found, error) {
		candidate, ok, err := s.Strategy.Lookup(ctx, query)
		return found{candidate: candidate, ok: ok}, err
	})
	return result.candidate, result.ok, err
}
