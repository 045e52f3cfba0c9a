package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dineshadepu/wrestler/internal/config"
	"github.com/dineshadepu/wrestler/internal/errors"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample wrestler.toml",
	Long: `Write a sample configuration with a local target, a remote target and
one example problem. The file is written to --config if given, otherwise
to ./wrestler.toml.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := viper.GetString("config")
	if path == "" {
		path = config.DefaultFileName
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		return errors.NewConfigError("config file already exists, use --force to overwrite", os.ErrExist).WithPath(path)
	}

	data, err := config.Encode(config.Sample())
	if err != nil {
		return fmt.Errorf("failed to render sample config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.NewConfigError("failed to write config", err).WithPath(path)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", path)
	fmt.Fprintln(cmd.OutOrStdout(), "Edit the targets and problems, then try: wrestler run heat --target local --dry-run")
	return nil
}
