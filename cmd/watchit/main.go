package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mutagen-io/watchit/cmd"
	"github.com/mutagen-io/watchit/pkg/configuration"
	"github.com/mutagen-io/watchit/pkg/filesystem"
	"github.com/mutagen-io/watchit/pkg/filesystem/watching"
	"github.com/mutagen-io/watchit/pkg/logging"
	"github.com/mutagen-io/watchit/pkg/supervisor"
	"github.com/mutagen-io/watchit/pkg/watchit"
)

// rootMain is the entry point for the root command.
func rootMain(command *cobra.Command, arguments []string) error {
	// Extract the command to run, if any.
	var commandString string
	if len(arguments) == 1 {
		commandString = arguments[0]
	}

	// Resolve the root.
	root, err := filesystem.Normalize(rootConfiguration.root)
	if err != nil {
		return errors.Wrap(err, "unable to resolve root")
	}

	// Load configuration files and layer explicitly specified flags on top.
	settings, err := configuration.Load(root)
	if err != nil {
		return err
	}
	overrides, err := rootConfiguration.configuration(command.Flags())
	if err != nil {
		return err
	}
	settings.Merge(overrides)
	if err := settings.EnsureValid(); err != nil {
		return errors.Wrap(err, "invalid settings")
	}

	// Configure logging.
	if rootConfiguration.noColor || !cmd.StandardErrorIsTerminal() {
		color.NoColor = true
	}
	logger := logging.NewLogger(logLevel(settings), os.Stderr)

	// Warn about settings that only apply to commands.
	interrupt := settings.Interrupt != nil && *settings.Interrupt
	if commandString == "" && interrupt {
		cmd.Warning("Interrupt mode has no effect without a command")
	}

	// Compute the command invocation parameters.
	shell, err := shellInvocation(settings.Shell)
	if err != nil {
		return err
	}
	environment, err := loadEnvironment(settings.EnvironmentFile)
	if err != nil {
		return err
	}

	// Create the allowed set provider.
	provider, err := newProvider(root, settings, logger)
	if err != nil {
		return err
	}

	// Create the engine and supervisor.
	engine := watching.NewEngine(root, provider, logger.Sublogger("engine"))
	runner := supervisor.New(supervisor.Options{
		Command:     commandString,
		Interrupt:   interrupt,
		QuietPeriod: settings.QuietPeriodOrDefault(supervisor.DefaultQuietPeriod),
		Shell:       shell,
		Environment: environment,
	}, logger.Sublogger("supervisor"))

	// Set up signal handling.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signalTermination := make(chan os.Signal, 1)
	signal.Notify(signalTermination, cmd.TerminationSignals...)
	defer signal.Stop(signalTermination)
	go func() {
		select {
		case s := <-signalTermination:
			logger.Debugf("Received %s signal, terminating", s)
			cancel()
		case <-ctx.Done():
		}
	}()

	// Perform watching.
	return watch(ctx, engine, runner)
}

// logLevel computes the logging level for the specified settings. Debug mode
// raises the level to at least debug.
func logLevel(settings *configuration.Configuration) logging.Level {
	level := settings.LogLevelOrDefault(logging.LevelInfo)
	if watchit.DebugEnabled && level < logging.LevelDebug {
		level = logging.LevelDebug
	}
	return level
}

// watch runs the engine and supervisor until the supervisor exits. Termination
// due to cancellation of the provided context isn't treated as an error.
func watch(ctx context.Context, engine *watching.Engine, runner *supervisor.Supervisor) error {
	// Create a cancellable context so that the engine stops whenever the
	// supervisor exits.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Create the queue connecting the engine to the supervisor.
	queue := watching.NewQueue()

	// Run both halves.
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		engine.Run(groupCtx, queue)
		return nil
	})
	group.Go(func() error {
		defer cancel()
		defer queue.Close()
		return runner.Run(groupCtx, queue.Events())
	})

	// Wait for completion.
	if err := group.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// rootCommand is the root command.
var rootCommand = &cobra.Command{
	Use:   "watchit [flags] [COMMAND]",
	Short: "Run a command whenever relevant files change",
	Long: `Watch a source tree and run COMMAND (through the shell) whenever a relevant
file changes. By default, relevant files are those known to Git: tracked files
and untracked files that aren't ignored. If no command is specified, watchit
exits successfully after the first detected change.`,
	Version:       watchit.Version,
	Args:          cobra.MaximumNArgs(1),
	RunE:          rootMain,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// rootConfiguration stores configuration for the root command.
var rootConfiguration rootFlags

func init() {
	// Disable Cobra's command sorting behavior. By default, it sorts commands
	// alphabetically in the help output.
	cobra.EnableCommandSorting = false

	// Disable Cobra's use of mousetrap, since watchit is only ever launched
	// from a console.
	cobra.MousetrapHelpText = ""

	// Set the template used by the version flag.
	rootCommand.SetVersionTemplate("watchit version {{ .Version }}\n")

	// Grab a handle for the command line flags.
	flags := rootCommand.Flags()

	// Disable alphabetical sorting of flags in help output.
	flags.SortFlags = false

	// Register flags.
	rootConfiguration.register(flags)

	// Register commands.
	rootCommand.AddCommand(versionCommand)
}

func main() {
	// Execute the root command.
	if err := rootCommand.Execute(); err != nil {
		cmd.Fatal(err)
	}
}
