package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/mukha/internal/store"
)

func newUsersCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage enrolled users",
	}
	cmd.AddCommand(
		newUsersListCmd(e),
		newUsersDeleteCmd(e),
		newUsersExportCmd(e),
		newUsersImportCmd(e),
	)
	return cmd
}

func newUsersListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List enrolled users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := e.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			users, err := st.Users().List()
			if err != nil {
				return fmt.Errorf("failed to list users: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(users) == 0 {
				fmt.Fprintln(out, "No users registered")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSAMPLES\tGLASSES\tFACIAL HAIR\tUPDATED")
			for _, u := range users {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n",
					u.Name, len(u.Embeddings), countTrue(u.HasGlasses), countTrue(u.HasFacialHair),
					u.LastUpdated.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
}

func newUsersDeleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>...",
		Short: "Delete users and their embeddings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := e.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			var errs []error
			for _, name := range args {
				err := st.Users().Delete(name)
				if errors.Is(err, store.ErrNotFound) {
					errs = append(errs, fmt.Errorf("user %q not found", name))
					continue
				}
				if err != nil {
					errs = append(errs, fmt.Errorf("delete %s: %w", name, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", name)
			}
			return errors.Join(errs...)
		},
	}
}

func newUsersExportCmd(e *env) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all profiles as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := e.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if output == "" || output == "-" {
				return st.ExportJSON(cmd.OutOrStdout())
			}

			f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
			if err != nil {
				return err
			}
			if err := st.ExportJSON(f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newUsersImportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import profiles written by export",
		Long:  "Import profiles from a JSON export. Users that already exist are skipped. Use - to read stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			st, err := e.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			report, err := st.ImportJSON(in)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d users", len(report.Imported))
			if len(report.Imported) > 0 {
				fmt.Fprintf(out, ": %s", strings.Join(report.Imported, ", "))
			}
			fmt.Fprintln(out)
			if len(report.Skipped) > 0 {
				fmt.Fprintf(out, "Skipped existing: %s\n", strings.Join(report.Skipped, ", "))
			}
			return nil
		},
	}
}

func countTrue(flags []bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}
