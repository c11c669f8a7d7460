// Vocalis - local voice assistant
// Entry point: serve (default), models, version.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matiasleandrokruk/vocalis/internal/infra/config"
	"github.com/matiasleandrokruk/vocalis/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// usageError marks bad invocations, which exit with 2.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// exitError carries an explicit exit code for failures already logged.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func run(args []string, out io.Writer) int {
	root := newRootCmd(out)
	root.SetArgs(args)

	err := root.Execute()
	var ue usageError
	var ee exitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &ee):
		return ee.code
	case errors.As(err, &ue), strings.HasPrefix(err.Error(), "unknown command"):
		fmt.Fprintln(out, "Error:", err) //nolint:errcheck
		return 2
	default:
		fmt.Fprintln(out, "Error:", err) //nolint:errcheck
		return 1
	}
}

// globalOptions are shared by every command.
type globalOptions struct {
	configFile string
	envFile    string
}

func newRootCmd(out io.Writer) *cobra.Command {
	gopts := &globalOptions{}
	sopts := &serveOptions{}

	root := &cobra.Command{
		Use:   "vocalis",
		Short: "Vocalis - a private, local voice assistant",
		Long: `Vocalis serves a browser UI for talking to local language models.
Speech recognition, inference and speech synthesis all run on this machine.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, gopts, sopts)
		},
	}
	root.SetOut(out)
	root.SetErr(out)
	root.SetVersionTemplate(version.String() + "\n")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&gopts.configFile, "config", "", "path to a vocalis.yaml config file")
	pf.StringVar(&gopts.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	addServeFlags(root.Flags(), sopts)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web UI server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, gopts, sopts)
		},
	}
	addServeFlags(serveCmd.Flags(), sopts)

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "List the models installed in the local inference daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runModels(cmd, gopts)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String()) //nolint:errcheck
		},
	}

	root.AddCommand(serveCmd, modelsCmd, versionCmd)
	return root
}

// loadConfig reads the dotenv file, then the environment and config file,
// then applies explicitly set flags.
func loadConfig(gopts *globalOptions, flags *pflag.FlagSet, sopts *serveOptions) (config.Config, error) {
	if err := config.LoadDotEnv(gopts.envFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(gopts.configFile)
	if err != nil {
		return config.Config{}, err
	}
	if flags != nil && sopts != nil {
		sopts.apply(flags, &cfg)
	}
	return cfg, nil
}
