package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/ashwch/syntaxpilot/internal/appdirs"
	"github.com/ashwch/syntaxpilot/internal/audit"
	"github.com/spf13/cobra"
)

func (a *app) auditCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the most recent audit records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := appdirs.StateFilePath(audit.FileName)
			if err != nil {
				return err
			}
			records, err := audit.Tail(path, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				payload, err := json.MarshalIndent(records, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(payload))
				return nil
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "no audit records")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tSTATE\tEXIT\tCOMMAND")
			for _, rec := range records {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", rec.Timestamp, rec.State, rec.ExitCode, rec.Command)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}
