package discovery

import (
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/mutagen-io/watchit/pkg/filesystem"
	"github.com/mutagen-io/watchit/pkg/filesystem/watching"
	"github.com/mutagen-io/watchit/pkg/logging"
)

// Filtered is a provider that removes ignored targets from the sets computed by
// another provider.
type Filtered struct {
	// root is the canonical root against which patterns are evaluated.
	root string
	// provider is the underlying provider.
	provider watching.Provider
	// ignorer is the ignorer.
	ignorer *Ignorer
	// logger is the underlying logger.
	logger *logging.Logger
}

// NewFiltered creates a new filtered provider. Patterns are evaluated against
// target paths relative to root.
func NewFiltered(root string, provider watching.Provider, patterns []string, logger *logging.Logger) (*Filtered, error) {
	// Resolve the root.
	canonical, err := filesystem.Canonicalize(root)
	if err != nil {
		return nil, errors.Wrap(err, "unable to resolve root")
	}

	// Create the ignorer.
	ignorer, err := NewIgnorer(patterns)
	if err != nil {
		return nil, errors.Wrap(err, "invalid ignore specification")
	}

	// Success.
	return &Filtered{
		root:     canonical,
		provider: provider,
		ignorer:  ignorer,
		logger:   logger,
	}, nil
}

// Refresh implements watching.Provider.Refresh.
func (f *Filtered) Refresh() (watching.Set, error) {
	// Compute the unfiltered set.
	unfiltered, err := f.provider.Refresh()
	if err != nil {
		return nil, err
	}

	// Perform filtering. Targets outside the root (or the root itself) aren't
	// subject to ignores.
	set := watching.NewSet()
	var ignored int64
	for target := range unfiltered {
		relative, err := filepath.Rel(f.root, target.Path)
		if err != nil || relative == "." || relative == ".." ||
			strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
			set.Add(target)
			continue
		}
		if f.ignorer.Ignored(filepath.ToSlash(relative), target.Kind == watching.KindDirectory) {
			ignored++
			continue
		}
		set.Add(target)
	}

	// Success.
	f.logger.Debugf("Ignored %s targets", humanize.Comma(ignored))
	return set, nil
}
