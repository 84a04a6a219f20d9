package filesystem

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// tildeExpand attempts tilde expansion of paths beginning with ~/ or
// ~<username>/ (or their backslash-separated equivalents on Windows).
func tildeExpand(path string) (string, error) {
	// Only process relevant paths.
	if path == "" || path[0] != '~' {
		return path, nil
	}

	// Split off the username portion, which runs up to the first path
	// separator. Path separators are always single-byte.
	username, remaining := path[1:], ""
	if index := strings.IndexFunc(path, func(r rune) bool {
		return r < 128 && os.IsPathSeparator(uint8(r))
	}); index > 0 {
		username, remaining = path[1:index], path[index+1:]
	}

	// Compute the relevant home directory.
	var home string
	if username == "" {
		if h, err := os.UserHomeDir(); err != nil {
			return "", errors.Wrap(err, "unable to compute path to home directory")
		} else {
			home = h
		}
	} else if u, err := user.Lookup(username); err != nil {
		return "", errors.Wrap(err, "unable to lookup user")
	} else {
		home = u.HomeDir
	}

	// Compute the full path.
	return filepath.Join(home, remaining), nil
}

// Normalize normalizes a user-provided path, expanding home directory tildes,
// converting it to an absolute path, and cleaning the result. It doesn't
// require that the path exist.
func Normalize(path string) (string, error) {
	// Expand any leading tilde.
	path, err := tildeExpand(path)
	if err != nil {
		return "", errors.Wrap(err, "unable to perform tilde expansion")
	}

	// Convert to an absolute path. This will also invoke filepath.Clean.
	path, err = filepath.Abs(path)
	if err != nil {
		return "", errors.Wrap(err, "unable to compute absolute path")
	}

	// Success.
	return path, nil
}

// Canonicalize converts an existing path to its canonical form: absolute,
// cleaned, and with all symbolic links resolved. Two paths referring to the
// same filesystem entry through different spellings canonicalize to the same
// string. Non-existence errors satisfy os.IsNotExist.
func Canonicalize(path string) (string, error) {
	// Convert to an absolute path first so that symbolic link resolution is
	// performed relative to a stable base.
	absolute, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrap(err, "unable to compute absolute path")
	}

	// Resolve symbolic links. We don't wrap this error because callers need to
	// distinguish entries that have vanished.
	return filepath.EvalSymlinks(absolute)
}
