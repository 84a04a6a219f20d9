// Package discovery provides implementations of watching.Provider that compute
// the set of files and directories relevant to a project.
package discovery

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/mutagen-io/watchit/pkg/filesystem"
	"github.com/mutagen-io/watchit/pkg/filesystem/watching"
	"github.com/mutagen-io/watchit/pkg/logging"
)

// include adds the file at the specified path (relative to root) and its
// parent directory to the set. Paths that can't be accessed (typically because
// they've been deleted since being listed) are skipped.
func include(set watching.Set, root, relative string, logger *logging.Logger) error {
	// Verify that the path is accessible.
	path := filepath.Join(root, relative)
	if _, err := os.Stat(path); err != nil {
		logger.Debugf("Ignoring %s since it cannot be accessed", relative)
		return nil
	}

	// Compute the canonical path.
	canonical, err := filesystem.Canonicalize(path)
	if err != nil {
		return errors.Wrapf(err, "unable to canonicalize path %s", relative)
	}

	// Record the file and its parent.
	set.Add(watching.File(canonical))
	set.Add(watching.Directory(filepath.Dir(canonical)))

	// Success.
	return nil
}
