// File: cmd/run.go
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/xkilldash9x/medipilot/internal/executor"
	"github.com/xkilldash9x/medipilot/internal/observability"
	"github.com/xkilldash9x/medipilot/internal/pilot"
	"github.com/xkilldash9x/medipilot/internal/service"
)

const disclaimer = `
MediPilot moves the mouse and types into the EMR on this desktop.
It does not make clinical judgments and it can misread a document.
Every value it enters must be checked by a clinician before signing.
Slam the pointer into a screen corner or press Ctrl+C to stop it.
`

// ErrNotConfirmed is returned when the disclaimer was not accepted.
var ErrNotConfirmed = errors.New("clinical-use disclaimer not accepted")

// isTerminal is replaced in tests.
var isTerminal = readerIsTerminal

// readerIsTerminal reports whether r is a file backed by a terminal.
func readerIsTerminal(r io.Reader) bool {
	f, ok := r.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

func newRunCmd(a *app) *cobra.Command {
	var yes, dryRun bool

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Extract lab values and enter them into the EMR",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.bindFlags(cmd, map[string]string{
				"instruction":    "task.instruction",
				"extract":        "task.extract",
				"max-iterations": "loop.max_iterations",
				"replay-dir":     "perception.replay_dir",
			}); err != nil {
				return err
			}
			if dryRun {
				a.v.Set("execution.driver", "dryrun")
			}
			return a.loadConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				if err := confirm(cmd.InOrStdin(), cmd.ErrOrStderr()); err != nil {
					return err
				}
			}
			return runSession(cmd.Context(), a, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	runCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept the clinical-use disclaimer without prompting.")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log input instead of sending it to the desktop.")
	runCmd.Flags().StringP("instruction", "i", "", "Task instruction for the operation loop. (Overrides config/env)")
	runCmd.Flags().Bool("extract", true, "Run the extraction phase before the loop. (Overrides config/env)")
	runCmd.Flags().IntP("max-iterations", "n", 0, "Maximum number of cycles. (Overrides config/env)")
	runCmd.Flags().String("replay-dir", "", "Read frames from this directory instead of the screen. (Overrides config/env)")
	return runCmd
}

// confirm shows the disclaimer and requires an explicit "yes" on in. When in
// is not a terminal there is nobody to ask, so the run is refused.
func confirm(in io.Reader, out io.Writer) error {
	fmt.Fprint(out, disclaimer)
	if !isTerminal(in) {
		return fmt.Errorf("%w: input is not a terminal, pass --yes to confirm", ErrNotConfirmed)
	}
	fmt.Fprint(out, "Type 'yes' to continue: ")

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading confirmation: %w", err)
	}
	if strings.ToLower(strings.TrimSpace(answer)) != "yes" {
		return ErrNotConfirmed
	}
	return nil
}

func runSession(ctx context.Context, a *app, stdout, stderr io.Writer) error {
	logger := observability.GetLogger()
	cfg := a.cfg

	components, err := a.factory.Create(ctx, cfg, logger)
	if err != nil {
		var sf *service.StartupFault
		if errors.As(err, &sf) {
			fmt.Fprintf(stderr, "Startup failed in %s: %v\n", sf.Component, sf.Err)
		}
		return err
	}
	defer components.Shutdown()

	session := components.Pilot.NewSession(cfg.Task().Instruction)
	logger.Info("Starting session.", zap.String("session_id", session.ID), zap.String("driver", cfg.Execution().Driver))

	if cfg.Task().Extract {
		findings, err := components.Pilot.Extract(ctx, session)
		switch {
		case errors.Is(err, pilot.ErrNoFindings):
			logger.Warn("No values could be extracted; continuing with the bare instruction.", zap.Error(err))
			fmt.Fprintln(stderr, "Warning: no lab values were extracted; the loop runs on the instruction alone.")
		case err != nil:
			return fmt.Errorf("extraction phase: %w", err)
		default:
			printFindings(stdout, findings)
		}
	}

	report, runErr := runLoop(ctx, components, session)
	printReport(stdout, stderr, report, runErr)
	if runErr != nil {
		return fmt.Errorf("session %s aborted: %w", report.SessionID, runErr)
	}
	return nil
}

// runLoop runs the control loop next to the metrics endpoint, when there
// is one. The endpoint is stopped as soon as the loop returns.
func runLoop(ctx context.Context, c *service.Components, s *pilot.Session) (pilot.Report, error) {
	if c.MetricsServer == nil {
		return c.Pilot.Run(ctx, s)
	}

	g, gctx := errgroup.WithContext(ctx)
	serverCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	g.Go(func() error {
		return c.MetricsServer.Run(serverCtx)
	})

	var report pilot.Report
	var runErr error
	g.Go(func() error {
		defer stopServer()
		report, runErr = c.Pilot.Run(gctx, s)
		return nil
	})

	if err := g.Wait(); err != nil {
		// The endpoint failed and took the loop down with it.
		return report, fmt.Errorf("metrics endpoint: %w", err)
	}
	return report, runErr
}

func printReport(stdout, stderr io.Writer, r pilot.Report, runErr error) {
	fmt.Fprintf(stdout, "\nSession:    %s\n", r.SessionID)
	fmt.Fprintf(stdout, "Outcome:    %s\n", r.Outcome)
	fmt.Fprintf(stdout, "Iterations: %d\n", r.Iterations)
	if r.Reason != "" {
		fmt.Fprintf(stdout, "Reason:     %s\n", r.Reason)
	}

	switch r.Outcome {
	case pilot.OutcomeFinished:
		fmt.Fprintf(stdout, "\nCLINICIAN REVIEW REQUIRED: %s\n", executor.FinishBanner)
	case pilot.OutcomeBoundReached:
		fmt.Fprintln(stdout, "\nThe iteration limit was reached before the model finished. Check the form for partial entries.")
	case pilot.OutcomeAborted:
		fmt.Fprintf(stderr, "\nSESSION ABORTED: %v\n", runErr)
	}
}
