package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/mukha/internal/app"
)

func newWatchCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Authenticate whenever someone steps in front of the camera",
		Long: `Poll the camera at a low frame rate and start an authentication session
when motion is detected, with a cooldown between sessions. Runs until
interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := e.openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Watching for motion, press Ctrl+C to stop")
			return a.Watch(ctx, func(res app.AuthResult, err error) {
				stamp := time.Now().Format(time.TimeOnly)
				if err != nil {
					fmt.Fprintf(out, "%s  error: %v\n", stamp, err)
					return
				}
				fmt.Fprintf(out, "%s  ", stamp)
				printAuthResult(out, res)
			})
		},
	}
}
