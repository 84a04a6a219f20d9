package configuration

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	// ConfigurationName is the name of both the global configuration file
	// (stored in the user's home directory) and project configuration files
	// (stored at the root of watched trees).
	ConfigurationName = ".watchit.yml"
)

// GlobalConfigurationPath returns the path of the global configuration file.
// It does not verify that the file exists.
func GlobalConfigurationPath() (string, error) {
	// Compute the path to the user's home directory.
	homeDirectoryPath, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "unable to compute path to home directory")
	}

	// Success.
	return filepath.Join(homeDirectoryPath, ConfigurationName), nil
}

// ProjectConfigurationPath returns the path of the project configuration file
// for the tree rooted at the specified path. It does not verify that the file
// exists.
func ProjectConfigurationPath(root string) string {
	return filepath.Join(root, ConfigurationName)
}
