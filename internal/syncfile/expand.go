package syncfile

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/VersBinarii/thesamo/internal/utils"
	"github.com/bmatcuk/doublestar/v4"
)

var (
	ErrNoMatch      = errors.New("pattern matched no files")
	ErrIDOnGlob     = errors.New("an explicit id cannot be used with a glob pattern")
	ErrDuplicateID  = errors.New("duplicate file identifier")
	globMetaSymbols = "*?[{"
)

// IsGlob reports whether path contains doublestar meta characters.
func IsGlob(path string) bool {
	return strings.ContainsAny(path, globMetaSymbols)
}

// Expand resolves a configured path into absolute file paths. A plain path is
// returned as is, even when it does not exist, so that the caller reports the
// open failure. A glob must match at least one regular file.
func Expand(pattern string) ([]string, error) {
	resolved, err := utils.ResolvePath(pattern)
	if err != nil {
		return nil, err
	}

	if !IsGlob(pattern) {
		return []string{resolved}, nil
	}

	matches, err := doublestar.FilepathGlob(resolved, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%q: %w", pattern, ErrNoMatch)
	}
	sort.Strings(matches)
	return matches, nil
}

// Entry is one configured file before expansion.
type Entry struct {
	Path string
	ID   string
}

// FromEntries expands every entry into watched files, keeping configuration
// order and the sorted order of glob matches.
func FromEntries(entries []Entry) ([]*WatchedFile, error) {
	var files []*WatchedFile
	for _, e := range entries {
		if e.ID != "" && IsGlob(e.Path) {
			return nil, fmt.Errorf("%q: %w", e.Path, ErrIDOnGlob)
		}
		paths, err := Expand(e.Path)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			files = append(files, NewWatchedFile(p, e.ID))
		}
	}
	return files, nil
}

// CheckUniqueIDs fails when two files share an identifier, which would make
// routing of incoming packets ambiguous.
func CheckUniqueIDs(files []*WatchedFile) error {
	seen := make(map[string]string, len(files))
	for _, f := range files {
		if other, ok := seen[f.ID]; ok {
			return fmt.Errorf("%w %q: %s and %s", ErrDuplicateID, f.ID, other, f.Path)
		}
		seen[f.ID] = f.Path
	}
	return nil
}
