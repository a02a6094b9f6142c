package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/pixelarts/internal/replay"
)

// VerifyResult holds the overall verification result.
type VerifyResult struct {
	Canvases []replay.Report `json:"canvases"`
	Total    int             `json:"total"`
	AllOK    bool            `json:"all_ok"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [canvas...]",
		Short: "Replay canvas logs and check their structure",
		Long: `Replay each canvas log and check that it is well formed.

A log is well formed when sequence numbers are dense from 0, it starts with
a snapshot, no run of deltas exceeds the compaction threshold, and folding
the whole log gives the same state as folding from the last snapshot.

Exit codes:
  0 - All canvases verified
  1 - At least one canvas has problems
  2 - Command error (database not found, etc.)

Examples:
  pixelarts verify
  pixelarts verify 0190c1a2-... --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			var reports []replay.Report
			if len(args) == 0 {
				if reports, err = a.svc.VerifyAll(a.ctx); err != nil {
					return WrapExitError(ExitCommandError, "failed to verify canvases", err)
				}
			} else {
				for _, id := range args {
					r, err := a.svc.Verify(a.ctx, id)
					if err != nil {
						return WrapExitError(ExitCommandError, fmt.Sprintf("failed to verify canvas %s", id), err)
					}
					reports = append(reports, r)
				}
			}

			result := VerifyResult{Canvases: reports, Total: len(reports), AllOK: true}
			if result.Canvases == nil {
				result.Canvases = []replay.Report{}
			}
			for _, r := range reports {
				if !r.OK() {
					result.AllOK = false
				}
			}

			if opts.Format == "json" {
				return outputVerifyJSON(out, result)
			}
			return outputVerifyText(out.Writer, result, opts.Verbose)
		},
	}

	return cmd
}

func outputVerifyJSON(out *OutputFormatter, result VerifyResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.AllOK {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeVerify,
			Message: "history verification failed",
		}
	}
	if err := out.encode(response); err != nil {
		return err
	}
	if !result.AllOK {
		return NewExitError(ExitFailure, "history verification failed")
	}
	return nil
}

func outputVerifyText(w io.Writer, result VerifyResult, verbose bool) error {
	if result.Total == 0 {
		fmt.Fprintln(w, "No canvases found in database.")
		return nil
	}

	fmt.Fprintf(w, "Verify Summary: %d canvas(es)\n", result.Total)
	fmt.Fprintln(w)

	for _, r := range result.Canvases {
		status := "✓"
		if !r.OK() {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Canvas: %s\n", status, r.CanvasID)
		if verbose {
			fmt.Fprintf(w, "  Entries: %d\n", r.Entries)
			fmt.Fprintf(w, "  Snapshots: %d\n", r.Snapshots)
			fmt.Fprintf(w, "  Deltas: %d\n", r.Deltas)
			fmt.Fprintf(w, "  Longest delta run: %d\n", r.MaxRun)
		} else {
			fmt.Fprintf(w, "  Entries: %d (%d snapshots)\n", r.Entries, r.Snapshots)
		}
		for _, p := range r.Problems {
			if p.Seq >= 0 {
				fmt.Fprintf(w, "  Problem at seq %d: %s\n", p.Seq, p.Message)
			} else {
				fmt.Fprintf(w, "  Problem: %s\n", p.Message)
			}
		}
		fmt.Fprintln(w)
	}

	if result.AllOK {
		fmt.Fprintln(w, "✓ All canvases verified")
		return nil
	}
	fmt.Fprintln(w, "✗ History verification failed")
	return NewExitError(ExitFailure, "history verification failed")
}
