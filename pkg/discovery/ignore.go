package discovery

import (
	pathpkg "path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// cleanPreservingTrailingSlash is a variant of path.Clean that preserves
// trailing slashes.
func cleanPreservingTrailingSlash(path string) string {
	// Determine whether or not a trailing slash exists. We enforce a minimum
	// length to ensure that we're not dealing with "/".
	var needTrailingSlash bool
	if l := len(path); l > 1 {
		needTrailingSlash = path[l-1] == '/'
	}

	// Perform a clean operation, adjusting the result as necessary.
	result := pathpkg.Clean(path)
	if needTrailingSlash {
		return result + "/"
	}
	return result
}

// ignorePattern represents a single parsed ignore pattern.
type ignorePattern struct {
	// negated indicates whether or not the pattern is negated.
	negated bool
	// directoryOnly indicates whether or not the pattern should only match
	// directories.
	directoryOnly bool
	// matchLeaf indicates whether or not the pattern should be matched against
	// a path's base name in addition to the whole path.
	matchLeaf bool
	// pattern is the pattern to use in matching.
	pattern string
}

// newIgnorePattern validates and parses a user-provided ignore pattern.
func newIgnorePattern(pattern string) (*ignorePattern, error) {
	// Ensure that the pattern is not empty.
	if pattern == "" {
		return nil, errors.New("empty pattern")
	}

	// Check for negation.
	var negated bool
	if pattern[0] == '!' {
		negated = true
		pattern = pattern[1:]
	}
	if pattern == "" {
		return nil, errors.New("negated empty pattern")
	}

	// Clean the pattern and reject patterns targeting the root, which is never
	// subject to ignores.
	pattern = cleanPreservingTrailingSlash(pattern)
	if pattern == "/" {
		return nil, errors.New("root pattern")
	} else if pattern == "//" {
		return nil, errors.New("root directory pattern")
	}

	// Strip any anchoring slash.
	var absolute bool
	if pattern[0] == '/' {
		absolute = true
		pattern = pattern[1:]
	}

	// Strip any directory-only slash.
	var directoryOnly bool
	if pattern[len(pattern)-1] == '/' {
		directoryOnly = true
		pattern = pattern[:len(pattern)-1]
	}

	// Validate the pattern by performing a match. We have to match against a
	// non-empty path, otherwise bad patterns won't be detected.
	if _, err := doublestar.Match(pattern, "a"); err != nil {
		return nil, errors.Wrap(err, "unable to validate pattern")
	}

	// Success.
	return &ignorePattern{
		negated:       negated,
		directoryOnly: directoryOnly,
		matchLeaf:     !absolute && !strings.Contains(pattern, "/"),
		pattern:       pattern,
	}, nil
}

// matches indicates whether or not the pattern matches the specified path.
func (i *ignorePattern) matches(path string, directory bool) bool {
	// Directory-only patterns can't match other types.
	if i.directoryOnly && !directory {
		return false
	}

	// Check for a direct match. The pattern was validated at construction, so
	// matching can't fail.
	if match, _ := doublestar.Match(i.pattern, path); match {
		return true
	}

	// Check for a leaf match if applicable.
	if i.matchLeaf && path != "" {
		if match, _ := doublestar.Match(i.pattern, pathpkg.Base(path)); match {
			return true
		}
	}

	// No match.
	return false
}

// EnsurePatternValid ensures that the provided ignore pattern is valid.
func EnsurePatternValid(pattern string) error {
	_, err := newIgnorePattern(pattern)
	return err
}

// Ignorer evaluates ignore patterns against slash-separated paths relative to
// a root. Later patterns take precedence over earlier ones, and patterns
// prefixed with "!" unignore content. Content inside an ignored directory is
// ignored regardless of any later negations.
type Ignorer struct {
	// patterns are the underlying ignore patterns.
	patterns []*ignorePattern
	// negatedPatternCount is the number of negated patterns.
	negatedPatternCount uint
}

// NewIgnorer creates a new ignorer from the specified patterns.
func NewIgnorer(patterns []string) (*Ignorer, error) {
	// Parse patterns.
	ignorePatterns := make([]*ignorePattern, len(patterns))
	var negatedPatternCount uint
	for p, pattern := range patterns {
		parsed, err := newIgnorePattern(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to parse pattern %q", pattern)
		}
		ignorePatterns[p] = parsed
		if parsed.negated {
			negatedPatternCount++
		}
	}

	// Success.
	return &Ignorer{
		patterns:            ignorePatterns,
		negatedPatternCount: negatedPatternCount,
	}, nil
}

// ignoredEntry determines whether or not a single entry is ignored, without
// regard to its parents.
func (i *Ignorer) ignoredEntry(path string, directory bool) bool {
	var ignored bool
	negatedPatternsRemaining := i.negatedPatternCount
	for _, pattern := range i.patterns {
		// Skip matching when the pattern can't change the result. Once
		// ignored, only a negated pattern can change state, and once no
		// negated patterns remain, the state is final.
		if ignored && negatedPatternsRemaining == 0 {
			break
		} else if pattern.negated {
			negatedPatternsRemaining--
			if !ignored {
				continue
			}
		} else if ignored {
			continue
		}

		// Update the state if the pattern matches.
		if pattern.matches(path, directory) {
			ignored = !pattern.negated
		}
	}
	return ignored
}

// Ignored determines whether or not the specified path is ignored, either
// directly or because one of its parent directories is ignored.
func (i *Ignorer) Ignored(path string, directory bool) bool {
	// Check parent directories, outermost first.
	for s := 0; s < len(path); s++ {
		if path[s] == '/' && i.ignoredEntry(path[:s], true) {
			return true
		}
	}

	// Check the path itself.
	return i.ignoredEntry(path, directory)
}
