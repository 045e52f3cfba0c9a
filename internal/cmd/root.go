package cmd

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dineshadepu/wrestler/internal/config"
	"github.com/dineshadepu/wrestler/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "wrestler",
	Short: "Run parametrized experiment pipelines locally or over ssh",
	Long: `Wrestler expands a problem's parameter sweep into one run per
combination and executes its build, run and analyze phases on a target:
the local machine or a remote host reachable with ssh.

Every run gets its own directory under
{root}/wrestler_outputs/problems/{problem}/runs/{target}/{run_name}
with the captured output of each phase in logs/.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, which is canceled to stop
// running phases.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is ./wrestler.toml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(strings.TrimSuffix(config.DefaultFileName, ".toml"))
		viper.SetConfigType("toml")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("WRESTLER")
	// e.g., WRESTLER_EXECUTION_MAX_PARALLEL for execution.max_parallel
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists; commands that need it report the error
	_ = viper.ReadInConfig()
}

// session bundles what every config-driven command needs.
type session struct {
	cfg    *config.Config
	logger *logging.Logger
	id     string
}

// openSession loads and validates the configuration and opens the logger.
// The caller must call close.
func openSession() (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	return &session{cfg: cfg, logger: logger.WithInvocation(id), id: id}, nil
}

func (s *session) close() {
	_ = s.logger.Close()
}
