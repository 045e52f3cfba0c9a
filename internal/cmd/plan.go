package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/dineshadepu/wrestler/internal/plan"
	"github.com/dineshadepu/wrestler/internal/styles"
	"github.com/dineshadepu/wrestler/internal/sweep"
)

var planCmd = &cobra.Command{
	Use:   "plan <problem>",
	Short: "List the runs a problem expands to, without executing anything",
	Long: `Expand the parameter sweep of a problem and list every run with its
parameters and run directory. Nothing is executed and nothing is created.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

var planTarget string

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVarP(&planTarget, "target", "t", "", "Target to plan for (required)")
	_ = planCmd.MarkFlagRequired("target")
}

func runPlan(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.close()

	spec, err := resolveSpec(sess.cfg, args[0], planTarget)
	if err != nil {
		return err
	}
	plans, err := plan.Build(spec)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	p := styles.NewPrinter(out)
	fmt.Fprintf(out, "%s\n", p.Render(styles.Header, fmt.Sprintf("%s on %s: %d runs (%s)",
		spec.ProblemName, spec.TargetName, len(plans), sweepShape(spec.Problem.Parameters))))

	width := 0
	for _, rp := range plans {
		width = max(width, lipgloss.Width(rp.Name))
	}
	for _, rp := range plans {
		name := rp.Name + strings.Repeat(" ", width-lipgloss.Width(rp.Name))
		fmt.Fprintf(out, "  %s  %s  %s\n", name, p.Render(styles.Muted, rp.Params.String()), rp.RunRoot)
	}
	return nil
}

// sweepShape describes the sweep as "mode×n = 1×3".
func sweepShape(params map[string][]any) string {
	keys := sweep.Keys(params)
	if len(keys) == 0 {
		return "no parameters"
	}
	sizes := make([]string, len(keys))
	for i, k := range keys {
		sizes[i] = fmt.Sprint(len(params[k]))
	}
	return fmt.Sprintf("%s = %s", strings.Join(keys, "×"), strings.Join(sizes, "×"))
}
