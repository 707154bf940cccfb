package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newAttemptsCmd(e *env) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "Show recent authentication attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := e.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			attempts, err := st.Attempts().List(limit)
			if err != nil {
				return fmt.Errorf("failed to list attempts: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(attempts)
			}
			if len(attempts) == 0 {
				fmt.Fprintln(out, "No attempts recorded")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tOUTCOME\tUSER\tCONFIDENCE")
			for _, a := range attempts {
				user := a.UserName
				if user == "" {
					user = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.3f\n",
					a.CreatedAt.Local().Format(time.DateTime), a.Outcome, user, a.Confidence)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of attempts to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON including per-sample scores")
	return cmd
}
