package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dineshadepu/wrestler/internal/plan"
	"github.com/dineshadepu/wrestler/internal/runlog"
	"github.com/dineshadepu/wrestler/internal/styles"
	"github.com/dineshadepu/wrestler/internal/surface"
	"github.com/dineshadepu/wrestler/internal/util"
)

var logsCmd = &cobra.Command{
	Use:   "logs <problem>",
	Short: "List runs or show the captured output of a phase",
	Long: `Browse the output stored by previous runs of a problem on a target.

Without --run, lists the run directories. With --run, prints the stored
stdout of a phase (default: run).

Examples:
  # List every run of "heat" on the cluster
  wrestler logs heat --target cluster

  # Only runs whose name matches a glob
  wrestler logs heat --target cluster --match 'fast-*'

  # Show the stderr of the build phase of one run
  wrestler logs heat --target cluster --run fast-1 --phase build --stderr

  # Follow the run phase of a local run while it executes
  wrestler logs heat --target local --run fast-2 --follow`,
	Args: cobra.ExactArgs(1),
	RunE: runLogs,
}

var (
	logsTarget string
	logsRun    string
	logsPhase  string
	logsStderr bool
	logsMatch  string
	logsFollow bool
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVarP(&logsTarget, "target", "t", "", "Target the runs executed on (required)")
	logsCmd.Flags().StringVarP(&logsRun, "run", "r", "", "Run name to show logs for")
	logsCmd.Flags().StringVarP(&logsPhase, "phase", "p", plan.PhaseRun, "Phase to show: build, run or analyze")
	logsCmd.Flags().BoolVar(&logsStderr, "stderr", false, "Show stderr instead of stdout")
	logsCmd.Flags().StringVarP(&logsMatch, "match", "m", "", "Only list runs matching this glob")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Keep printing output as it is written (local targets only)")
	_ = logsCmd.MarkFlagRequired("target")
}

func runLogs(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.close()

	problem := args[0]
	target, err := sess.cfg.LookupTarget(logsTarget)
	if err != nil {
		return err
	}

	browser := runlog.New(surface.New(*target, sess.cfg.Execution), target.Root, problem, logsTarget)
	out := cmd.OutOrStdout()
	printer := styles.NewPrinter(out)
	ctx := cmd.Context()

	if logsRun == "" {
		runs, err := browser.Runs(ctx, logsMatch)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, printer.Render(styles.Header, "Available runs:"))
		if len(runs) == 0 {
			fmt.Fprintln(out, printer.Render(styles.Muted, " (none)"))
		}
		for _, r := range runs {
			fmt.Fprintf(out, " - %s\n", r)
		}
		return nil
	}

	stream := runlog.Stdout
	if logsStderr {
		stream = runlog.Stderr
	}
	path := browser.LogPath(logsRun, logsPhase, stream)

	if logsFollow {
		fmt.Fprintf(out, "%s\n\n", printer.Render(styles.Muted, "Following log: "+path))
		return browser.Follow(ctx, logsRun, logsPhase, stream, out)
	}

	data, err := browser.Read(ctx, logsRun, logsPhase, stream)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s\n\n", printer.Render(styles.Muted, fmt.Sprintf("Showing log: %s (%s)", path, util.Bytes(int64(len(data))))))
	_, err = out.Write(data)
	return err
}
