// Package ignore matches relative paths against gitignore-syntax patterns.
//
// Supported syntax: *, ?, **, [...] classes, rooted patterns (/build),
// directory-only patterns (tmp/), negation (!keep.log), comments and
// patterns scoped to a nested base directory. The last matching rule wins.
//
//	m := ignore.New()
//	_ = m.AddPatterns("*.log", "!keep.log", "/build/")
//	m.Match("build/out.bin", false) // true
package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// Matcher holds compiled rules. It is safe for concurrent use.
type Matcher struct {
	mu    sync.RWMutex
	rules []rule
}

type rule struct {
	source   string
	re       *regexp.Regexp
	negate   bool
	dirOnly  bool
	anchored bool
	base     string
}

// New creates an empty Matcher.
func New() *Matcher {
	return &Matcher{}
}

// AddPattern compiles and appends a single pattern.
// Blank lines and comments are accepted and ignored.
func (m *Matcher) AddPattern(pattern string) error {
	return m.addWithBase(pattern, "")
}

// AddPatterns adds every pattern, stopping at the first invalid one.
func (m *Matcher) AddPatterns(patterns ...string) error {
	for _, p := range patterns {
		if err := m.AddPattern(p); err != nil {
			return err
		}
	}
	return nil
}

// AddFromFile reads patterns from an ignore file. base is the directory of
// the file relative to the watch root ("" for the root itself).
func (m *Matcher) AddFromFile(path, base string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open ignore file: %w", err)
	}
	defer func() { _ = f.Close() }()

	base = strings.Trim(filepath.ToSlash(base), "/")
	if base == "." {
		base = ""
	}

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		if err := m.addWithBase(scanner.Text(), base); err != nil {
			return fmt.Errorf("%s:%d: %w", path, line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read ignore file: %w", err)
	}
	return nil
}

// Len returns the number of compiled rules.
func (m *Matcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}

func (m *Matcher) addWithBase(pattern, base string) error {
	r, ok, err := compile(pattern)
	if err != nil || !ok {
		return err
	}
	r.base = base

	m.mu.Lock()
	m.rules = append(m.rules, r)
	m.mu.Unlock()
	return nil
}

// compile parses one line. ok is false for blank lines and comments.
func compile(line string) (rule, bool, error) {
	keepTrailingSpace := strings.HasSuffix(line, `\ `)
	p := strings.TrimSpace(line)
	if p == "" || strings.HasPrefix(p, "#") {
		return rule{}, false, nil
	}
	if keepTrailingSpace {
		p = strings.TrimSuffix(p, `\`) + " "
	}

	r := rule{source: p}
	switch {
	case strings.HasPrefix(p, `\#`), strings.HasPrefix(p, `\!`):
		p = p[1:]
	case strings.HasPrefix(p, "!"):
		r.negate = true
		p = p[1:]
	}

	if strings.HasSuffix(p, "/") {
		r.dirOnly = true
		p = strings.TrimRight(p, "/")
	}
	if strings.HasPrefix(p, "/") {
		r.anchored = true
		p = strings.TrimLeft(p, "/")
	}
	if strings.Contains(p, "/") {
		r.anchored = true
	}
	if p == "" {
		return rule{}, false, nil
	}

	re, err := regexp.Compile("^" + translate(p) + "$")
	if err != nil {
		return rule{}, false, fmt.Errorf("invalid pattern %q: %w", r.source, err)
	}
	r.re = re
	return r, true, nil
}

// translate converts glob syntax to a regular expression body.
func translate(p string) string {
	var b strings.Builder
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch c {
		case '*':
			if i+1 < len(p) && p[i+1] == '*' {
				switch {
				case i+2 < len(p) && p[i+2] == '/':
					b.WriteString("(?:.*/)?")
					i += 2
				default:
					b.WriteString(".*")
					i++
				}
				continue
			}
			b.WriteString("[^/]*")
		case '?':
			b.WriteString("[^/]")
		case '[':
			end := strings.IndexByte(p[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := p[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + class + "]")
			i += end + 1
		case '\\':
			if i+1 < len(p) {
				i++
				b.WriteString(regexp.QuoteMeta(string(p[i])))
			} else {
				b.WriteString(`\\`)
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String()
}

// Match reports whether relPath (slash or OS separated, relative to the
// watch root) is ignored.
func (m *Matcher) Match(relPath string, isDir bool) bool {
	relPath = strings.Trim(filepath.ToSlash(relPath), "/")
	if relPath == "" || relPath == "." {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ignored := false
	for i := range m.rules {
		if m.rules[i].matches(relPath, isDir) {
			ignored = !m.rules[i].negate
		}
	}
	return ignored
}

func (r *rule) matches(path string, isDir bool) bool {
	if r.base != "" {
		if !strings.HasPrefix(path, r.base+"/") {
			return false
		}
		path = strings.TrimPrefix(path, r.base+"/")
	}

	parts := strings.Split(path, "/")
	last := len(parts) - 1

	if r.anchored {
		for i := range parts {
			if !r.re.MatchString(strings.Join(parts[:i+1], "/")) {
				continue
			}
			if i < last {
				// a matched ancestor directory covers everything below it
				return true
			}
			return !r.dirOnly || isDir
		}
		return false
	}

	for i, part := range parts {
		if !r.re.MatchString(part) {
			continue
		}
		if i < last {
			return true
		}
		return !r.dirOnly || isDir
	}
	return false
}
