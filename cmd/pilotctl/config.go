package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ashwch/syntaxpilot/internal/appdirs"
	"github.com/ashwch/syntaxpilot/internal/config"
	"github.com/spf13/cobra"
)

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and edit config.toml",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path := a.configPath
				if path == "" {
					var err error
					if path, err = appdirs.ConfigFilePath(); err != nil {
						return err
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "get [key]",
			Short: "Print one setting, or the whole config as JSON",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, _, err := a.loadConfig()
				if err != nil {
					return err
				}
				if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
					payload, err := json.MarshalIndent(cfg, "", "  ")
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), string(payload))
					return nil
				}
				val, err := cfg.Get(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), val)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Change one setting and save config.toml",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				key, value := args[0], args[1]
				if strings.TrimSpace(value) == "" {
					return fmt.Errorf("value for %s cannot be empty", key)
				}
				// Save only what the file holds; environment overlays stay out of it.
				cfg, path, err := a.loadFileOnly()
				if err != nil {
					return err
				}
				if err := cfg.Set(key, value); err != nil {
					return err
				}
				if err := config.Save(path, cfg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s=%s\n", key, value)
				return nil
			},
		},
	)
	return cmd
}

func (a *app) loadFileOnly() (config.Config, string, error) {
	if a.configPath != "" {
		cfg, err := config.LoadFile(a.configPath)
		return cfg, a.configPath, err
	}
	_, path, err := config.LoadOrCreate()
	if err != nil {
		return config.Config{}, "", err
	}
	cfg, err := config.LoadFile(path)
	return cfg, path, err
}
