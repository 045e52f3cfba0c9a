// Package config defines wrestler's configuration schema and loads it.
//
// Targets and problems are decoded case-preserving straight from the config
// file, since parameter names and environment variable names are case
// sensitive. The scalar settings under [execution] and [logging] go through
// viper so they can be overridden by WRESTLER_* environment variables and
// command-line flags.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dineshadepu/wrestler/internal/errors"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = "wrestler.toml"

// Config represents the complete wrestler configuration
type Config struct {
	Targets   map[string]Target  `mapstructure:"targets" toml:"targets"`
	Problems  map[string]Problem `mapstructure:"problems" toml:"problems"`
	Execution ExecutionConfig    `mapstructure:"execution" toml:"execution"`
	Logging   LoggingConfig      `mapstructure:"logging" toml:"logging"`
}

// Target is an execution locale: a root directory, optionally on a remote
// host reachable with ssh.
type Target struct {
	// Root is the project root on the target machine
	Root string `mapstructure:"root" toml:"root"`
	// SSH is the ssh endpoint (e.g. "user@host" or a ssh_config alias).
	// Empty means the target is the local machine.
	SSH string `mapstructure:"ssh" toml:"ssh,omitempty"`
}

// IsRemote reports whether operations on the target go through ssh.
func (t Target) IsRemote() bool {
	return t.SSH != ""
}

// Problem is a named experiment: a parameter sweep, a run name template and
// the phase templates.
type Problem struct {
	// RunName is a template resolved per combination, e.g. "{mode}-{n}"
	RunName string `mapstructure:"run_name" toml:"run_name"`
	// Parameters maps each parameter name to its ordered list of values
	Parameters map[string][]any `mapstructure:"parameters" toml:"parameters"`
	Phases     Phases           `mapstructure:"phases" toml:"phases"`
}

// Phases holds the phase templates of a problem. Run is required.
type Phases struct {
	Build   *PhaseTemplate `mapstructure:"build" toml:"build,omitempty"`
	Run     PhaseTemplate  `mapstructure:"run" toml:"run"`
	Analyze *PhaseTemplate `mapstructure:"analyze" toml:"analyze,omitempty"`
}

// PhaseTemplate is the unresolved definition of one phase.
type PhaseTemplate struct {
	Program string   `mapstructure:"program" toml:"program"`
	Args    []string `mapstructure:"args" toml:"args"`
	// Cwd is the working directory template; empty selects the phase default
	Cwd string            `mapstructure:"cwd" toml:"cwd,omitempty"`
	Env map[string]string `mapstructure:"env" toml:"env,omitempty"`
}

// ExecutionConfig controls how plans are executed
type ExecutionConfig struct {
	// MaxParallel is the number of plans executed concurrently (default: 1)
	MaxParallel int `mapstructure:"max_parallel" toml:"max_parallel"`
	// FailFast stops dispatching plans after the first failed plan.
	// When false (default) every plan runs and failures are reported together.
	FailFast bool `mapstructure:"fail_fast" toml:"fail_fast"`
	// ApplyEnv exports each phase's env mapping to the phase command (default: true)
	ApplyEnv bool `mapstructure:"apply_env" toml:"apply_env"`
	// PhaseTimeout bounds each phase; 0 means no timeout
	PhaseTimeout time.Duration `mapstructure:"phase_timeout" toml:"phase_timeout,omitempty"`
	// SSHBinary is the remote-shell client executable (default: "ssh")
	SSHBinary string `mapstructure:"ssh_binary" toml:"ssh_binary"`
	// SSHOptions are passed to every ssh invocation before the endpoint
	SSHOptions []string `mapstructure:"ssh_options" toml:"ssh_options"`
}

// LoggingConfig controls wrestler's own debug log
type LoggingConfig struct {
	// Level is the minimum level written: debug, info, warn or error (default: warn)
	Level string `mapstructure:"level" toml:"level"`
	// File is the JSON log path; empty writes to stderr
	File string `mapstructure:"file" toml:"file,omitempty"`
}

// Default returns a Config with default values and no targets or problems.
func Default() *Config {
	return &Config{
		Targets:  map[string]Target{},
		Problems: map[string]Problem{},
		Execution: ExecutionConfig{
			MaxParallel: 1,
			FailFast:    false,
			ApplyEnv:    true,
			SSHBinary:   "ssh",
			SSHOptions:  []string{"-o", "BatchMode=yes"},
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	SetDefaultsOn(viper.GetViper())
}

// SetDefaultsOn registers default values with v.
func SetDefaultsOn(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("execution.max_parallel", defaults.Execution.MaxParallel)
	v.SetDefault("execution.fail_fast", defaults.Execution.FailFast)
	v.SetDefault("execution.apply_env", defaults.Execution.ApplyEnv)
	v.SetDefault("execution.phase_timeout", defaults.Execution.PhaseTimeout)
	v.SetDefault("execution.ssh_binary", defaults.Execution.SSHBinary)
	v.SetDefault("execution.ssh_options", defaults.Execution.SSHOptions)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.file", defaults.Logging.File)
}

// decodeHook converts "30m" style strings to durations and "a,b" strings to
// slices.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// Load reads the config file viper resolved, overlays the viper-managed
// settings and validates the result.
func Load() (*Config, error) {
	return LoadWith(viper.GetViper())
}

// LoadWith is Load against an explicit viper instance.
func LoadWith(v *viper.Viper) (*Config, error) {
	path := v.ConfigFileUsed()
	if path == "" {
		return nil, errors.NewConfigError("no configuration file found", os.ErrNotExist).WithPath(DefaultFileName)
	}

	cfg, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}

	overlay(v, cfg)

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errors.NewConfigError("invalid configuration", ValidationErrors(errs)).WithPath(path)
	}

	return cfg, nil
}

// overlay copies the viper-managed settings onto cfg. Viper has already
// merged defaults, the config file, WRESTLER_* env vars and bound flags.
func overlay(v *viper.Viper, cfg *Config) {
	cfg.Execution.MaxParallel = v.GetInt("execution.max_parallel")
	cfg.Execution.FailFast = v.GetBool("execution.fail_fast")
	cfg.Execution.ApplyEnv = v.GetBool("execution.apply_env")
	cfg.Execution.PhaseTimeout = v.GetDuration("execution.phase_timeout")
	cfg.Execution.SSHBinary = v.GetString("execution.ssh_binary")
	cfg.Execution.SSHOptions = v.GetStringSlice("execution.ssh_options")

	cfg.Logging.Level = v.GetString("logging.level")
	cfg.Logging.File = v.GetString("logging.file")
}

// DecodeFile reads and decodes a config file without consulting viper.
// The format is chosen by extension: .toml (default), .yaml/.yml or .json.
func DecodeFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError("failed to read config", err).WithPath(path)
	}

	cfg, err := Decode(data, formatOf(path))
	if err != nil {
		var cerr *errors.ConfigError
		if errors.As(err, &cerr) {
			return nil, cerr.WithPath(path)
		}
		return nil, err
	}
	return cfg, nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	default:
		return "toml"
	}
}

// Decode parses data in the given format ("toml", "yaml" or "json") on top
// of the defaults. Keys keep their case.
func Decode(data []byte, format string) (*Config, error) {
	raw := map[string]any{}

	var err error
	switch format {
	case "yaml":
		err = yaml.Unmarshal(data, &raw)
	case "json":
		err = json.Unmarshal(data, &raw)
	default:
		err = toml.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, errors.NewConfigError(fmt.Sprintf("failed to parse %s", format), err)
	}

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       decodeHook(),
		Result:           cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: false,
	})
	if err != nil {
		return nil, errors.NewConfigError("failed to build decoder", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.NewConfigError("failed to decode config", err)
	}

	return cfg, nil
}

// LookupProblem returns the named problem or a LookupError listing the
// defined problems.
func (c *Config) LookupProblem(name string) (*Problem, error) {
	p, ok := c.Problems[name]
	if !ok {
		return nil, errors.NewLookupError("problem", name).WithAvailable(c.ProblemNames())
	}
	return &p, nil
}

// LookupTarget returns the named target or a LookupError listing the
// defined targets.
func (c *Config) LookupTarget(name string) (*Target, error) {
	t, ok := c.Targets[name]
	if !ok {
		return nil, errors.NewLookupError("target", name).WithAvailable(c.TargetNames())
	}
	return &t, nil
}

// ProblemNames returns the defined problem names, sorted.
func (c *Config) ProblemNames() []string {
	return sortedKeys(c.Problems)
}

// TargetNames returns the defined target names, sorted.
func (c *Config) TargetNames() []string {
	return sortedKeys(c.Targets)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sample returns an example configuration used by "wrestler init".
func Sample() *Config {
	cfg := Default()
	cfg.Targets["local"] = Target{Root: "."}
	cfg.Targets["cluster"] = Target{Root: "/scratch/me/project", SSH: "me@cluster"}
	cfg.Problems["heat"] = Problem{
		RunName: "{mode}-{n}",
		Parameters: map[string][]any{
			"n":    {int64(1), int64(2), int64(4)},
			"mode": {"fast"},
		},
		Phases: Phases{
			Build: &PhaseTemplate{
				Program: "make",
				Args:    []string{"-j4"},
			},
			Run: PhaseTemplate{
				Program: "{project_root}/bin/heat",
				Args:    []string{"--threads", "{n}", "--mode", "{mode}", "--out", "{run_dir}/run"},
				Env:     map[string]string{"OMP_NUM_THREADS": "{n}"},
			},
			Analyze: &PhaseTemplate{
				Program: "python3",
				Args:    []string{"{project_root}/scripts/plot.py", "{run_dir}/run"},
			},
		},
	}
	return cfg
}

// Encode renders cfg as TOML.
func Encode(cfg *Config) ([]byte, error) {
	return toml.Marshal(cfg)
}
