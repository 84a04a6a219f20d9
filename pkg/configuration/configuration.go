package configuration

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/mutagen-io/watchit/pkg/discovery"
	"github.com/mutagen-io/watchit/pkg/encoding"
	"github.com/mutagen-io/watchit/pkg/logging"
)

const (
	// ProviderGit selects the Git-based allowed set provider.
	ProviderGit = "git"
	// ProviderWalk selects the walk-based allowed set provider.
	ProviderWalk = "walk"
)

// Configuration is the YAML configuration object type. Unset fields are
// represented by nil or empty values so that configurations can be layered.
type Configuration struct {
	// QuietPeriod is the debounce window applied before each run.
	QuietPeriod *Duration `yaml:"quietPeriod"`
	// Interrupt indicates whether or not running commands should be
	// interrupted when changes are detected.
	Interrupt *bool `yaml:"interrupt"`
	// Verbose indicates whether or not debug logging should be enabled.
	Verbose *bool `yaml:"verbose"`
	// LogLevel is the name of the logging level (disabled, error, warn, info,
	// debug, or trace).
	LogLevel string `yaml:"logLevel"`
	// Provider is the allowed set provider name.
	Provider string `yaml:"provider"`
	// Shell is the shell invocation used to run commands.
	Shell string `yaml:"shell"`
	// EnvironmentFile is the path to a dotenv file whose contents are added to
	// the command environment. Relative paths are resolved against the
	// directory containing the configuration file.
	EnvironmentFile string `yaml:"environmentFile"`
	// Ignore are additional ignore patterns.
	Ignore []string `yaml:"ignore"`
}

// LoadConfiguration attempts to load a YAML-based configuration file from the
// specified path. It passes through os.IsNotExist errors.
func LoadConfiguration(path string) (*Configuration, error) {
	// Create the target configuration object.
	result := &Configuration{}

	// Attempt to load.
	if err := encoding.LoadAndUnmarshalYAML(path, result); err != nil {
		return nil, err
	}

	// Resolve the environment file path.
	if result.EnvironmentFile != "" && !filepath.IsAbs(result.EnvironmentFile) {
		result.EnvironmentFile = filepath.Join(filepath.Dir(path), result.EnvironmentFile)
	}

	// Success.
	return result, nil
}

// loadIfExists loads a configuration file, treating a non-existent file as an
// empty configuration.
func loadIfExists(path string) (*Configuration, error) {
	result, err := LoadConfiguration(path)
	if os.IsNotExist(err) {
		return &Configuration{}, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "unable to load configuration from %s", path)
	}
	return result, nil
}

// Load loads the global configuration and the project configuration for the
// tree rooted at the specified path, merging the latter on top of the former.
// Missing files are treated as empty. The result is validated.
func Load(root string) (*Configuration, error) {
	// Load the global configuration.
	globalPath, err := GlobalConfigurationPath()
	if err != nil {
		return nil, err
	}
	result, err := loadIfExists(globalPath)
	if err != nil {
		return nil, err
	}

	// Load the project configuration.
	project, err := loadIfExists(ProjectConfigurationPath(root))
	if err != nil {
		return nil, err
	}
	result.Merge(project)

	// Validate the result.
	if err := result.EnsureValid(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	// Success.
	return result, nil
}

// Merge merges another configuration on top of this one. Set values in other
// take precedence, except for ignore patterns, which are appended.
func (c *Configuration) Merge(other *Configuration) {
	if other.QuietPeriod != nil {
		c.QuietPeriod = other.QuietPeriod
	}
	if other.Interrupt != nil {
		c.Interrupt = other.Interrupt
	}
	if other.Verbose != nil {
		c.Verbose = other.Verbose
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.Provider != "" {
		c.Provider = other.Provider
	}
	if other.Shell != "" {
		c.Shell = other.Shell
	}
	if other.EnvironmentFile != "" {
		c.EnvironmentFile = other.EnvironmentFile
	}
	c.Ignore = append(c.Ignore, other.Ignore...)
}

// EnsureValid ensures that the configuration is valid.
func (c *Configuration) EnsureValid() error {
	// Verify that the logging level is recognized.
	if c.LogLevel != "" {
		if _, ok := logging.NameToLevel(c.LogLevel); !ok {
			return errors.Errorf("unknown logging level: %s", c.LogLevel)
		}
	}

	// Verify that the provider is recognized.
	switch c.Provider {
	case "", ProviderGit, ProviderWalk:
	default:
		return errors.Errorf("unknown provider: %s", c.Provider)
	}

	// Verify that ignore patterns are valid.
	for _, pattern := range c.Ignore {
		if err := discovery.EnsurePatternValid(pattern); err != nil {
			return errors.Wrapf(err, "invalid ignore pattern %q", pattern)
		}
	}

	// Success.
	return nil
}

// QuietPeriodOrDefault returns the configured quiet period, or the specified
// default if none is configured.
func (c *Configuration) QuietPeriodOrDefault(defaultQuietPeriod time.Duration) time.Duration {
	if c.QuietPeriod == nil {
		return defaultQuietPeriod
	}
	return time.Duration(*c.QuietPeriod)
}

// LogLevelOrDefault returns the configured logging level, or the specified
// default if none is configured. Verbose mode raises the result to at least
// debug level.
func (c *Configuration) LogLevelOrDefault(defaultLevel logging.Level) logging.Level {
	level := defaultLevel
	if named, ok := logging.NameToLevel(c.LogLevel); ok {
		level = named
	}
	if c.Verbose != nil && *c.Verbose && level < logging.LevelDebug {
		level = logging.LevelDebug
	}
	return level
}
