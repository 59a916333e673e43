package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fsmonitor/internal/errors"
)

func newTestFilter(t *testing.T, root string, opts ...Option) *pathFilter {
	t.Helper()
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	require.NoError(t, s.validate())
	f, err := newPathFilter(root, &s)
	require.NoError(t, err)
	return f
}

func TestNoiseSet_MatchesKnownSuffixes(t *testing.T) {
	n := newNoiseSet(DefaultNoiseSuffixes)

	tests := []struct {
		name  string
		noisy bool
	}{
		{"config.json", false},
		{"config.json~", true},
		{"config.json.tmp", true},
		{"CONFIG.JSON.TMP", true},
		{".config.json.swp", true},
		{"4913.swx", true},
		{"report.pdf.crdownload", true},
		{"archive.zip.part", true},
		{"main.go.orig", true},
		{"notes.bak", true},
		{"Cargo.lock", true},
		{"tmp", false},
		{"lockfile", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.noisy, n.match(filepath.Join("/w", tt.name)))
		})
	}
}

func TestNoiseSet_Empty_MatchesNothing(t *testing.T) {
	n := newNoiseSet(nil)
	assert.False(t, n.match("/w/a.tmp"))
}

func TestPathFilter_Admit(t *testing.T) {
	root := t.TempDir()
	f := newTestFilter(t, root,
		WithFilter("*.json"),
		WithIgnorePatterns("build/", "*.gen.json"))

	tests := []struct {
		name  string
		ev    rawEvent
		admit bool
	}{
		{"matching write", rawEvent{Path: filepath.Join(root, "a.json"), Kind: KindModified}, true},
		{"nested match", rawEvent{Path: filepath.Join(root, "x", "y", "a.json"), Kind: KindRenamed}, true},
		{"filter mismatch", rawEvent{Path: filepath.Join(root, "a.txt"), Kind: KindModified}, false},
		{"kind outside mask", rawEvent{Path: filepath.Join(root, "a.json"), Kind: KindDeleted}, false},
		{"kind partly in mask", rawEvent{Path: filepath.Join(root, "a.json"), Kind: KindCreated | KindModified}, true},
		{"noise suffix", rawEvent{Path: filepath.Join(root, "a.json.tmp"), Kind: KindModified}, false},
		{"ignored dir", rawEvent{Path: filepath.Join(root, "build", "a.json"), Kind: KindModified}, false},
		{"ignored glob", rawEvent{Path: filepath.Join(root, "x.gen.json"), Kind: KindModified}, false},
		{"git metadata", rawEvent{Path: filepath.Join(root, ".git", "index.json"), Kind: KindModified}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.admit, f.admit(tt.ev))
			// cached verdicts agree
			assert.Equal(t, tt.admit, f.admit(tt.ev))
		})
	}
}

func TestPathFilter_Gitignore_LoadedWhenEnabled(t *testing.T) {
	// Given: a .gitignore at the root
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("dist/\n*.log\n!keep.log\n"), 0o644))

	// When: the filter loads it
	f := newTestFilter(t, root, WithGitignore(true))

	// Then: its rules apply, negation included
	assert.False(t, f.admit(rawEvent{Path: filepath.Join(root, "dist", "app.js"), Kind: KindModified}))
	assert.False(t, f.admit(rawEvent{Path: filepath.Join(root, "debug.log"), Kind: KindModified}))
	assert.True(t, f.admit(rawEvent{Path: filepath.Join(root, "keep.log"), Kind: KindModified}))
	assert.True(t, f.skipDir(filepath.Join(root, "dist")))
	assert.False(t, f.skipDir(root))
}

func TestPathFilter_MissingGitignore_IsNotAnError(t *testing.T) {
	root := t.TempDir()
	f := newTestFilter(t, root, WithGitignore(true))
	assert.True(t, f.admit(rawEvent{Path: filepath.Join(root, "a"), Kind: KindModified}))
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
		code string
	}{
		{"negative quiet period", WithQuietPeriod(-time.Millisecond), errors.ErrCodeInvalidInput},
		{"empty kinds", WithKinds(0), errors.ErrCodeInvalidInput},
		{"unknown kind bits", WithKinds(Kind(0x80)), errors.ErrCodeInvalidInput},
		{"bad glob", WithFilter("[a-"), errors.ErrCodeInvalidPattern},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := defaultSettings()
			tt.opt(&s)
			err := s.validate()
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}
}

func TestSettings_ZeroQuietPeriod_IsValid(t *testing.T) {
	s := defaultSettings()
	WithQuietPeriod(0)(&s)
	assert.NoError(t, s.validate())
}
