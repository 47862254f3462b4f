package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/ashwch/syntaxpilot/internal/appdirs"
	"github.com/ashwch/syntaxpilot/internal/config"
	"github.com/ashwch/syntaxpilot/internal/safety"
	"github.com/spf13/cobra"
)

type check struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Status string `json:"status"`
}

func (a *app) doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check model files, index credentials and directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			checks, err := a.doctorChecks()
			if err != nil {
				return err
			}
			payload, err := json.MarshalIndent(checks, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return nil
		},
	}
}

func (a *app) doctorChecks() ([]check, error) {
	statePath, err := appdirs.StateDir()
	if err != nil {
		return nil, err
	}
	cfg, cfgPath, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	checks := []check{
		{Key: "os", Value: runtime.GOOS, Status: "ok"},
		{Key: "config_path", Value: cfgPath, Status: statusPath(cfgPath)},
		{Key: "state_dir", Value: statePath, Status: statusPath(statePath)},
		{Key: "resolver", Value: cfg.Resolver, Status: "ok"},
	}

	switch cfg.Resolver {
	case config.ResolverSuggest:
		checks = append(checks, check{Key: "suggest_url", Value: cfg.Suggest.URL, Status: statusSet(cfg.Suggest.URL)})
	default:
		checks = append(checks,
			check{Key: "model", Value: cfg.ModelPath(), Status: statusPath(cfg.ModelPath())},
			check{Key: "tokenizer", Value: cfg.TokenizerPath(), Status: statusPath(cfg.TokenizerPath())},
		)
		if cfg.Model.RuntimeLibrary != "" {
			checks = append(checks, check{Key: "runtime_library", Value: cfg.Model.RuntimeLibrary, Status: statusPath(cfg.Model.RuntimeLibrary)})
		} else {
			checks = append(checks, check{Key: "runtime_library", Value: "system default", Status: "ok"})
		}
		checks = append(checks, check{Key: "index_backend", Value: cfg.Index.Backend, Status: "ok"})
		checks = append(checks, indexChecks(cfg)...)
	}

	if err := cfg.Validate(); err != nil {
		for _, issue := range unwrapAll(err) {
			checks = append(checks, check{Key: "config_issue", Value: issue.Error(), Status: "error"})
		}
	}
	return checks, nil
}

func indexChecks(cfg config.Config) []check {
	switch cfg.Index.Backend {
	case config.BackendPinecone:
		return []check{
			{Key: config.EnvPineconeAPIKey, Value: safety.MaskSecret(cfg.Index.APIKey), Status: statusSet(cfg.Index.APIKey)},
			{Key: config.EnvPineconeIndexURL, Value: cfg.Index.URL, Status: statusSet(cfg.Index.URL)},
		}
	case config.BackendPGVector:
		return []check{
			{Key: config.EnvPostgresDSN, Value: safety.RedactText(cfg.Index.PostgresDSN), Status: statusSet(cfg.Index.PostgresDSN)},
			{Key: "index.table", Value: cfg.Index.Table, Status: "ok"},
		}
	case config.BackendSQLite:
		return []check{
			{Key: "index.sqlite_path", Value: cfg.Index.SQLitePath, Status: statusPath(cfg.Index.SQLitePath)},
			{Key: "index.table", Value: cfg.Index.Table, Status: "ok"},
		}
	}
	return nil
}

func unwrapAll(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

func statusPath(path string) string {
	if path == "" {
		return "missing"
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "missing"
		}
		return "error"
	}
	return "ok"
}

func statusSet(value string) string {
	if value == "" {
		return "missing"
	}
	return "ok"
}
