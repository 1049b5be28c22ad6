package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"depcompliance/internal/config"
	"depcompliance/internal/logging"
)

// Process exit codes.
const (
	ExitOK        = 0
	ExitUsage     = 1
	ExitThreshold = 2
	ExitDegraded  = 3
)

// version is set at build time via -ldflags.
var version = "dev"

var exit = os.Exit

var cfgFile string

// exitError carries a non-zero exit code out of a RunE without printing
// cobra's usage block.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "depcompliance",
		Short: "Dependency license, vulnerability and supply-chain analysis",
		Long: `depcompliance inspects a project directory, resolves its dependency set,
builds an SPDX-style bill of materials and reports license compliance,
known vulnerabilities, outdated packages and an overall risk score.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ./.depcompliance.yaml)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "text", "Log format (text, json)")

	root.AddCommand(newAnalyzeCmd(), newPolicyCmd(), newSBOMCmd())
	return root
}

// loadConfig builds the viper instance for one command, binds the command's
// flags onto their config keys and initializes logging.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (config.Config, error) {
	v := config.New()
	bindings[config.KeyLogLevel] = "log-level"
	bindings[config.KeyLogFormat] = "log-format"
	if err := bindFlags(v, cmd, bindings); err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return cfg, err
	}
	logging.Init(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())
	return cfg, nil
}

func bindFlags(v *viper.Viper, cmd *cobra.Command, bindings map[string]string) error {
	for key, name := range bindings {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			return fmt.Errorf("unknown flag %q for %s", name, key)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs the root command and maps its error onto an exit code.
func Execute() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n=== CRITICAL ERROR: Command Execution Panic ===\n")
			fmt.Fprintf(os.Stderr, "Error: %v\n", r)
			exit(ExitUsage)
		}
	}()

	exit(exitCode(rootCmd.Execute()))
}

func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.msg != "" {
			fmt.Fprintln(os.Stderr, ee.msg)
		}
		return ee.code
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	fmt.Fprintln(os.Stderr, "Run 'depcompliance --help' for usage.")
	return ExitUsage
}
