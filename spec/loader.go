package spec

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hollandm/slurmherd/errors"
)

// Skip records a job description file that was discovered but could not
// be parsed. Skips are warnings, not failures: the batch continues.
type Skip struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Loader discovers job description files in a directory.
type Loader struct {
	extensions map[string]struct{}
	logger     *zap.SugaredLogger
}

// NewLoader creates a loader accepting the given filename extensions
// (e.g. ".sbatch", ".job"). logger may be nil for silent operation.
func NewLoader(extensions []string, logger *zap.SugaredLogger) *Loader {
	exts := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		exts[strings.ToLower(ext)] = struct{}{}
	}
	return &Loader{extensions: exts, logger: logger}
}

// Load discovers job specs in dir, ordered by filename (lexicographic,
// deterministic). The directory not existing or being unreadable is an
// ErrDiscovery; an individual file failing to parse is recorded as a
// Skip and the rest of the batch proceeds.
func (l *Loader) Load(dir string) ([]JobSpec, []Skip, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, errors.Wrap(errors.Wrap(errors.ErrDiscovery, err.Error()), dir)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !l.Accepts(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var specs []JobSpec
	var skips []Skip
	for _, name := range names {
		path := filepath.Join(dir, name)
		js, err := Parse(path)
		if err != nil {
			if l.logger != nil {
				l.logger.Warnw("Skipping unparseable job spec",
					"path", path,
					"error", err,
				)
			}
			skips = append(skips, Skip{Path: path, Reason: err.Error()})
			continue
		}
		specs = append(specs, js)
	}

	return specs, skips, nil
}

// Accepts reports whether a filename has one of the configured
// job description extensions.
func (l *Loader) Accepts(name string) bool {
	_, ok := l.extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}
