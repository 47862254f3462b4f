package main

import (
	"errors"
	"flag"
	"io"
	"testing"
)

func TestParseArgsHelpReturnsFlagErrHelp(t *testing.T) {
	_, _, err := parseArgs([]string{"--help"}, io.Discard)
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected flag.ErrHelp, got %v", err)
	}
}

func TestParseArgsVersionFlag(t *testing.T) {
	opts, query, err := parseArgs([]string{"--version"}, io.Discard)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if !opts.Version {
		t.Fatalf("expected version flag to be true")
	}
	if query != "" {
		t.Fatalf("expected empty query, got %q", query)
	}
}

func TestParseArgsJoinsPositionalWords(t *testing.T) {
	opts, query, err := parseArgs([]string{"--dry-run", "please", "give", "me", "a", "nextjs", "boilerplate"}, io.Discard)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if !opts.DryRun {
		t.Fatalf("expected dry-run to be set")
	}
	if query != "please give me a nextjs boilerplate" {
		t.Fatalf("unexpected query %q", query)
	}
}

func TestParseArgsQuietImpliesDryRun(t *testing.T) {
	opts, _, err := parseArgs([]string{"--quiet", "list", "files"}, io.Discard)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if !opts.DryRun {
		t.Fatalf("expected --quiet to imply --dry-run")
	}
}

func TestParseArgsOverrides(t *testing.T) {
	opts, _, err := parseArgs([]string{"--resolver", "suggest", "--index", "sqlite", "--top-k", "3", "--ui", "HUH", "x"}, io.Discard)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if opts.Resolver != "suggest" || opts.Index != "sqlite" || opts.TopK != 3 {
		t.Fatalf("unexpected overrides: %+v", opts)
	}
	if opts.UI != "huh" {
		t.Fatalf("expected normalized ui backend, got %q", opts.UI)
	}
}

func TestParseArgsRejectsUnknownUIBackend(t *testing.T) {
	if _, _, err := parseArgs([]string{"--ui", "curses", "x"}, io.Discard); err == nil {
		t.Fatalf("expected unknown ui backend to be rejected")
	}
}

func TestParseArgsRejectsNegativeTopK(t *testing.T) {
	if _, _, err := parseArgs([]string{"--top-k", "-1", "x"}, io.Discard); err == nil {
		t.Fatalf("expected negative top-k to be rejected")
	}
}

func TestParseArgsUnknownFlag(t *testing.T) {
	if _, _, err := parseArgs([]string{"--nope"}, io.Discard); err == nil {
		t.Fatalf("expected unknown flag error")
	}
}
