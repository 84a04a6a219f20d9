package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/mutagen-io/watchit/pkg/configuration"
)

// rootFlags stores command line flags for the root command.
type rootFlags struct {
	// help indicates whether or not to show help information and exit.
	help bool
	// quietPeriod is the debounce window, in seconds.
	quietPeriod float64
	// verbose indicates whether or not debug logging should be enabled.
	verbose bool
	// logLevel is the name of the logging level.
	logLevel string
	// interrupt indicates whether or not running commands should be
	// interrupted when changes are detected.
	interrupt bool
	// root is the root of the watched tree.
	root string
	// ignore are additional ignore patterns.
	ignore []string
	// provider is the allowed set provider name.
	provider string
	// shell is the shell invocation used to run commands.
	shell string
	// environmentFile is the path to a dotenv file for the command
	// environment.
	environmentFile string
	// noColor indicates whether or not colorized output should be disabled.
	noColor bool
}

// register registers the flags with the specified flag set.
func (f *rootFlags) register(flags *pflag.FlagSet) {
	// Manually add a help flag to override the default message. Cobra will
	// still implement its logic automatically.
	flags.BoolVarP(&f.help, "help", "h", false, "Show help information")

	// Add behavioral flags.
	flags.Float64VarP(&f.quietPeriod, "quiet-period", "q", 0.5, "Wait this many seconds for changes to settle before running")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "Enable debug logging")
	flags.BoolVarP(&f.interrupt, "interrupt", "p", false, "Interrupt the running command when changes are detected")

	// Add tree selection flags.
	flags.StringVarP(&f.root, "root", "r", ".", "Watch the tree rooted at this path")
	flags.StringArrayVarP(&f.ignore, "ignore", "i", nil, "Ignore paths matching this pattern (may be repeated)")
	flags.StringVar(&f.provider, "provider", configuration.ProviderGit, "Determine relevant files using this provider (git|walk)")

	// Add command environment flags.
	flags.StringVar(&f.shell, "shell", "", "Run the command using this shell invocation (default \"/bin/sh -c\")")
	flags.StringVar(&f.environmentFile, "env-file", "", "Add variables from this dotenv file to the command environment")

	// Add output flags.
	flags.StringVar(&f.logLevel, "log-level", "info", "Set the logging level (disabled|error|warn|info|debug|trace)")
	flags.BoolVar(&f.noColor, "no-color", false, "Disable colorized output")
}

// configuration converts explicitly specified flags into a configuration that
// can be layered on top of configuration files. Flags left at their default
// values don't override file-based settings.
func (f *rootFlags) configuration(flags *pflag.FlagSet) (*configuration.Configuration, error) {
	result := &configuration.Configuration{}
	if flags.Changed("quiet-period") {
		quietPeriod, err := configuration.SecondsToDuration(f.quietPeriod)
		if err != nil {
			return nil, errors.Wrap(err, "invalid quiet period")
		}
		result.QuietPeriod = &quietPeriod
	}
	if flags.Changed("verbose") {
		verbose := f.verbose
		result.Verbose = &verbose
	}
	if flags.Changed("log-level") {
		result.LogLevel = f.logLevel
	}
	if flags.Changed("interrupt") {
		interrupt := f.interrupt
		result.Interrupt = &interrupt
	}
	if flags.Changed("provider") {
		result.Provider = f.provider
	}
	if flags.Changed("shell") {
		result.Shell = f.shell
	}
	if flags.Changed("env-file") {
		result.EnvironmentFile = f.environmentFile
	}
	result.Ignore = f.ignore
	return result, nil
}
