package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dineshadepu/wrestler/internal/errors"
	"github.com/dineshadepu/wrestler/internal/plan"
	"github.com/dineshadepu/wrestler/internal/styles"
	"github.com/dineshadepu/wrestler/internal/sweep"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and every problem/target plan set",
	Long: `Load and validate the configuration, then build the plans of every
problem on every target to catch run-name collisions and bad parameters
before anything runs.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.close()

	out := cmd.OutOrStdout()
	p := styles.NewPrinter(out)
	cfg := sess.cfg

	failed := 0
	for _, problemName := range sortedNames(cfg.Problems) {
		for _, targetName := range sortedNames(cfg.Targets) {
			spec, err := resolveSpec(cfg, problemName, targetName)
			if err == nil {
				var plans []*plan.RunPlan
				plans, err = plan.Build(spec)
				if err == nil {
					fmt.Fprintf(out, "%s %s on %s: %d runs\n", p.Render(styles.Success, "✓"), problemName, targetName, len(plans))
					continue
				}
			}
			failed++
			fmt.Fprintf(out, "%s %s on %s: %v\n", p.Render(styles.Failure, "✗"), problemName, targetName, err)
		}
	}

	if failed > 0 {
		return errors.NewValidationError(fmt.Sprintf("%d problem/target combinations are invalid", failed))
	}
	total := 0
	for _, prob := range cfg.Problems {
		total += sweep.Count(prob.Parameters) * len(cfg.Targets)
	}
	fmt.Fprintf(out, "\nConfiguration %s is valid (%d runs in total).\n", viper.ConfigFileUsed(), total)
	return nil
}
