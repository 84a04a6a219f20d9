package discovery

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/mutagen-io/watchit/pkg/filesystem/watching"
	"github.com/mutagen-io/watchit/pkg/logging"
	"github.com/mutagen-io/watchit/pkg/process"
)

// untrackedStatus is the porcelain status code for untracked files.
const untrackedStatus = "??"

// Git is a provider that allows files that Git knows about: those in the index
// and untracked files that aren't ignored.
type Git struct {
	// root is the repository root.
	root string
	// logger is the underlying logger.
	logger *logging.Logger
}

// NewGit creates a new Git provider for the repository rooted at the specified
// path.
func NewGit(root string, logger *logging.Logger) *Git {
	return &Git{root: root, logger: logger}
}

// Refresh implements watching.Provider.Refresh.
func (g *Git) Refresh() (watching.Set, error) {
	// Ensure that we're at the root of a repository.
	if _, err := os.Stat(filepath.Join(g.root, ".git")); err != nil {
		return nil, errors.New("not a git repository (or not at its root)")
	}

	// Create the result.
	set := watching.NewSet()

	// Helper diagnostics (e.g. warnings about unreadable paths) are only of
	// interest when debugging.
	diagnostics := g.logger.Sublogger("git").Writer(logging.LevelDebug)

	// Add cached files.
	g.logger.Debug("Checking cached files with git ls-files")
	output, err := process.Output(g.root, diagnostics, "git", "ls-files", "-c", "-z")
	if err != nil {
		return nil, errors.Wrap(err, "unable to list cached files")
	}
	for _, path := range splitNullTerminated(output) {
		if err := include(set, g.root, path, g.logger); err != nil {
			return nil, err
		}
	}

	// Add untracked files.
	g.logger.Debug("Checking untracked files with git status")
	output, err = process.Output(g.root, diagnostics, "git", "status", "--porcelain", "--untracked-files=all", "-z")
	if err != nil {
		return nil, errors.Wrap(err, "unable to list untracked files")
	}
	for _, path := range untrackedPaths(output) {
		if err := include(set, g.root, path, g.logger); err != nil {
			return nil, err
		}
	}

	// Success.
	g.logger.Debugf("Allowed set contains %s targets", humanize.Comma(int64(set.Len())))
	return set, nil
}

// splitNullTerminated splits NUL-terminated output into its fields.
func splitNullTerminated(output []byte) []string {
	var fields []string
	for _, field := range bytes.Split(output, []byte{0}) {
		if len(field) > 0 {
			fields = append(fields, string(field))
		}
	}
	return fields
}

// untrackedPaths extracts untracked paths from NUL-terminated porcelain status
// output. Renames and copies are followed by an extra field containing the
// source path, which is skipped.
func untrackedPaths(output []byte) []string {
	var paths []string
	fields := splitNullTerminated(output)
	for f := 0; f < len(fields); f++ {
		entry := fields[f]
		if len(entry) < 4 {
			continue
		}
		status := entry[:2]
		if status == untrackedStatus {
			paths = append(paths, entry[3:])
		} else if status[0] == 'R' || status[0] == 'C' {
			f++
		}
	}
	return paths
}
