package discovery

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/mutagen-io/watchit/pkg/filesystem"
	"github.com/mutagen-io/watchit/pkg/filesystem/watching"
	"github.com/mutagen-io/watchit/pkg/logging"
)

// Walk is a provider that allows every regular file beneath a root, except
// those inside Git metadata directories. It's intended for trees that aren't
// repositories and is typically combined with Filtered.
type Walk struct {
	// root is the tree root.
	root string
	// logger is the underlying logger.
	logger *logging.Logger
}

// NewWalk creates a new walk provider for the tree rooted at the specified
// path.
func NewWalk(root string, logger *logging.Logger) *Walk {
	return &Walk{root: root, logger: logger}
}

// Refresh implements watching.Provider.Refresh.
func (w *Walk) Refresh() (watching.Set, error) {
	// Resolve the root. Symbolic links beneath the root aren't followed by the
	// walk, so paths built on the canonical root are themselves canonical.
	root, err := filesystem.Canonicalize(w.root)
	if err != nil {
		return nil, errors.Wrap(err, "unable to resolve root")
	}

	// Perform the walk.
	set := watching.NewSet()
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		// Entries that disappear mid-walk are skipped, but a failure to read
		// the root itself is fatal.
		if err != nil {
			if path == root {
				return err
			} else if os.IsNotExist(err) {
				w.logger.Debugf("Ignoring %s since it cannot be accessed", path)
				return nil
			}
			return errors.Wrapf(err, "unable to walk %s", path)
		}

		// Handle directories.
		if entry.IsDir() {
			if entry.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}

		// Record regular files.
		if entry.Type().IsRegular() {
			set.Add(watching.File(path))
			set.Add(watching.Directory(filepath.Dir(path)))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to walk tree")
	}

	// Success.
	w.logger.Debugf("Allowed set contains %s targets", humanize.Comma(int64(set.Len())))
	return set, nil
}
