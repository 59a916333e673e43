package monitor

import (
	"fmt"
	"io/fs"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/fsmonitor/internal/errors"
	"github.com/Aman-CERP/fsmonitor/internal/ignore"
)

// verdict is the path-dependent part of event filtering.
type verdict uint8

const (
	admitted verdict = iota
	rejectedFilter
	rejectedIgnored
	rejectedNoise
)

// builtinIgnores are always applied. Git rewrites its own metadata on
// nearly every command.
var builtinIgnores = []string{".git/"}

// pathFilter decides whether a raw event qualifies. Verdicts depend only on
// the path, so they are cached: bursts hit the same few paths repeatedly.
type pathFilter struct {
	root    string
	pattern string
	kinds   Kind
	noise   noiseSet
	ignore  *ignore.Matcher
	cache   *lru.Cache[string, verdict]
}

func newPathFilter(root string, s *settings) (*pathFilter, error) {
	m := ignore.New()
	if err := m.AddPatterns(builtinIgnores...); err != nil {
		return nil, errors.InternalError("compile builtin ignore patterns", err)
	}
	if err := m.AddPatterns(s.ignore...); err != nil {
		return nil, errors.New(errors.ErrCodeInvalidPattern, err.Error(), err)
	}
	if s.gitignore {
		path := filepath.Join(root, ".gitignore")
		if err := m.AddFromFile(path, ""); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.New(errors.ErrCodeInvalidPattern, fmt.Sprintf("load %s", path), err)
		}
	}

	cache, err := lru.New[string, verdict](s.cacheSize)
	if err != nil {
		return nil, errors.InternalError("create filter cache", err)
	}

	return &pathFilter{
		root:    root,
		pattern: s.filter,
		kinds:   s.kinds,
		noise:   newNoiseSet(s.noise),
		ignore:  m,
		cache:   cache,
	}, nil
}

// admit reports whether ev may start or extend a quiet period.
func (f *pathFilter) admit(ev rawEvent) bool {
	if !f.kinds.Has(ev.Kind) {
		return false
	}
	return f.classify(ev) == admitted
}

func (f *pathFilter) classify(ev rawEvent) verdict {
	key := ev.Path
	if ev.IsDir {
		key += string(filepath.Separator)
	}
	if v, ok := f.cache.Get(key); ok {
		return v
	}
	v := f.evaluate(ev.Path, ev.IsDir)
	f.cache.Add(key, v)
	return v
}

func (f *pathFilter) evaluate(path string, isDir bool) verdict {
	name := filepath.Base(path)
	if f.ignore.Match(f.rel(path), isDir) {
		return rejectedIgnored
	}
	if f.noise.match(name) {
		return rejectedNoise
	}
	if ok, _ := filepath.Match(f.pattern, name); !ok {
		return rejectedFilter
	}
	return admitted
}

// skipDir reports whether a directory should not be watched at all.
func (f *pathFilter) skipDir(path string) bool {
	rel := f.rel(path)
	if rel == "." {
		return false
	}
	return f.ignore.Match(rel, true)
}

func (f *pathFilter) rel(path string) string {
	rel, err := filepath.Rel(f.root, path)
	if err != nil {
		return filepath.Base(path)
	}
	return rel
}
