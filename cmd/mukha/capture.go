package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/mukha/internal/app"
	"github.com/ayusman/mukha/internal/store"
)

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func newRegisterCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "register <name>",
		Short: "Enroll a new user from the camera",
		Long: `Capture liveness-confirmed samples of a new user. Look at the camera,
blink a few times and turn your head slightly left and right.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := e.openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			out := cmd.OutOrStdout()
			done := followCapture(out, a.Preview(), e.cfg.Capture.RegistrationSamples, "Registering")
			u, err := a.Register(ctx, args[0])
			done()

			var dup *app.DuplicateIdentityError
			switch {
			case errors.As(err, &dup):
				return fmt.Errorf("this face is already registered as %s (similarity %.2f)", dup.User, dup.Similarity)
			case errors.Is(err, store.ErrUserExists):
				return fmt.Errorf("user %q already exists", args[0])
			case err != nil:
				return err
			}

			fmt.Fprintf(out, "Registered %s with %d samples\n", u.Name, len(u.Embeddings))
			return nil
		},
	}
}

func newAuthCmd(e *env) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate the person in front of the camera",
		Long: `Run one authentication session. The command exits with status 0 when a
user was recognized and 1 otherwise, so it can gate scripts.`,
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
			done := func() {}
			if !quiet {
				done = followCapture(out, a.Preview(), e.cfg.Capture.AuthSamples, "Authenticating")
			}
			res, err := a.Authenticate(ctx)
			done()
			if err != nil {
				return err
			}

			printAuthResult(out, res)
			if !res.Matched {
				return exitError{code: 1}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not draw capture progress")
	return cmd
}

func printAuthResult(w io.Writer, res app.AuthResult) {
	switch res.Outcome {
	case store.OutcomeMatched:
		fmt.Fprintf(w, "Authenticated as %s (confidence %.3f)\n", res.MatchedUser, res.Confidence)
	case store.OutcomeNoUsers:
		fmt.Fprintln(w, "No users registered")
	case store.OutcomeCaptureFailed:
		fmt.Fprintln(w, "No live face confirmed in time")
	default:
		fmt.Fprintln(w, "Face not recognized")
	}
}
