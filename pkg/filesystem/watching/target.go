package watching

import (
	"path/filepath"
)

// Kind distinguishes file targets from directory targets.
type Kind uint8

const (
	// KindFile indicates a regular file (or any other non-directory entry).
	KindFile Kind = iota
	// KindDirectory indicates a directory.
	KindDirectory
)

// String provides a human-readable representation of a target kind.
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// Target identifies a watchable file or directory. Targets are comparable
// values: two targets are equal if and only if they have the same kind and the
// same path. Paths in targets produced by providers are expected to be
// canonical (see filesystem.Canonicalize) so that equality is meaningful.
type Target struct {
	// Kind is the target kind.
	Kind Kind
	// Path is the absolute path of the target.
	Path string
}

// File creates a file target for the specified path.
func File(path string) Target {
	return Target{Kind: KindFile, Path: filepath.Clean(path)}
}

// Directory creates a directory target for the specified path.
func Directory(path string) Target {
	return Target{Kind: KindDirectory, Path: filepath.Clean(path)}
}

// String provides a human-readable representation of a target.
func (t Target) String() string {
	return t.Kind.String() + ":" + t.Path
}

// Set is a set of targets.
type Set map[Target]struct{}

// NewSet creates a set containing the specified targets.
func NewSet(targets ...Target) Set {
	result := make(Set, len(targets))
	for _, target := range targets {
		result[target] = struct{}{}
	}
	return result
}

// Add adds a target to the set.
func (s Set) Add(target Target) {
	s[target] = struct{}{}
}

// Contains returns whether or not the set contains the target. It is safe to
// call on a nil set.
func (s Set) Contains(target Target) bool {
	_, ok := s[target]
	return ok
}

// Len returns the number of targets in the set.
func (s Set) Len() int {
	return len(s)
}

// Relevant determines whether or not a target should be treated as changed
// given the two most recent allowed set snapshots. Membership in either
// snapshot suffices: the provider and the notification stream aren't
// synchronized, so a file can become allowed (or stop being allowed) between a
// notification and the snapshot taken to evaluate it.
func Relevant(target Target, previous, current Set) bool {
	return current.Contains(target) || previous.Contains(target)
}
