package main

import (
	"sort"

	"github.com/google/shlex"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/mutagen-io/watchit/pkg/configuration"
	"github.com/mutagen-io/watchit/pkg/discovery"
	"github.com/mutagen-io/watchit/pkg/filesystem/watching"
	"github.com/mutagen-io/watchit/pkg/logging"
	"github.com/mutagen-io/watchit/pkg/process"
)

// shellInvocation parses a shell specification into the arguments that
// precede the command string. A bare shell path is given the platform's
// command flag.
func shellInvocation(specification string) ([]string, error) {
	// Handle the default case.
	if specification == "" {
		return process.DefaultShell, nil
	}

	// Split the specification.
	shell, err := shlex.Split(specification)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse shell specification")
	} else if len(shell) == 0 {
		return nil, errors.New("empty shell specification")
	}

	// Add the command flag if necessary.
	if len(shell) == 1 {
		shell = append(shell, process.DefaultShell[1:]...)
	}

	// Success.
	return shell, nil
}

// loadEnvironment loads a dotenv file and returns its contents as environment
// entries, sorted by name. An empty path yields no entries.
func loadEnvironment(path string) ([]string, error) {
	// Handle the empty case.
	if path == "" {
		return nil, nil
	}

	// Load the file.
	variables, err := godotenv.Read(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load environment file")
	}

	// Convert to environment entries.
	environment := make([]string, 0, len(variables))
	for name, value := range variables {
		environment = append(environment, name+"="+value)
	}
	sort.Strings(environment)

	// Success.
	return environment, nil
}

// newProvider creates the allowed set provider described by the settings.
func newProvider(root string, settings *configuration.Configuration, logger *logging.Logger) (watching.Provider, error) {
	// Create the base provider.
	var provider watching.Provider
	switch settings.Provider {
	case "", configuration.ProviderGit:
		provider = discovery.NewGit(root, logger.Sublogger("git"))
	case configuration.ProviderWalk:
		provider = discovery.NewWalk(root, logger.Sublogger("walk"))
	default:
		return nil, errors.Errorf("unknown provider: %s", settings.Provider)
	}

	// Apply ignores if necessary.
	if len(settings.Ignore) == 0 {
		return provider, nil
	}
	filtered, err := discovery.NewFiltered(root, provider, settings.Ignore, logger.Sublogger("ignore"))
	if err != nil {
		return nil, err
	}
	return filtered, nil
}
