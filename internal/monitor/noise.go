package monitor

import (
	"path/filepath"
	"strings"
)

// DefaultNoiseSuffixes are file-name endings produced by editors, tools and
// browsers for temporary or backup files. Events for such names never start
// or extend a quiet period.
var DefaultNoiseSuffixes = []string{
	"~",    // emacs/gedit backups
	".tmp", // generic temporary files, atomic-save staging
	".temp",
	".swp", // vim swap files
	".swo",
	".swx",
	".bak",        // backups
	".orig",       // merge leftovers
	".part",       // partial downloads
	".crdownload", // chrome partial downloads
	".lock",       // editor and tool lock files
}

// noiseSet is a case-insensitive suffix list.
type noiseSet []string

func newNoiseSet(suffixes []string) noiseSet {
	set := make(noiseSet, 0, len(suffixes))
	for _, s := range suffixes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			set = append(set, s)
		}
	}
	return set
}

// match reports whether the base name of path ends with a noise suffix.
func (n noiseSet) match(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	for _, s := range n {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}
