package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/Aman-CERP/fsmonitor/internal/errors"
)

// Kind is a set of change kinds.
type Kind uint8

const (
	// KindCreated indicates a file or directory appeared. Files renamed into
	// the watched directory also arrive as created.
	KindCreated Kind = 1 << iota
	// KindModified indicates file contents were written.
	KindModified
	// KindSizeChanged indicates the file size changed. fsnotify reports size
	// changes as writes, so write events carry both KindModified and this bit.
	KindSizeChanged
	// KindRenamed indicates a file was renamed away from or into its path.
	// Sources cannot tell a rename destination from a new file, so new
	// files carry this bit as well as KindCreated.
	KindRenamed
	// KindDeleted indicates a file or directory was removed.
	KindDeleted
	// KindAttributes indicates permissions or other metadata changed.
	KindAttributes
)

const (
	// DefaultKinds observes writes, size changes and renames.
	DefaultKinds = KindModified | KindRenamed | KindSizeChanged
	// KindAll observes everything.
	KindAll = KindCreated | KindModified | KindSizeChanged | KindRenamed | KindDeleted | KindAttributes
)

var kindNames = []struct {
	kind Kind
	name string
}{
	{KindCreated, "created"},
	{KindModified, "modified"},
	{KindSizeChanged, "size"},
	{KindRenamed, "renamed"},
	{KindDeleted, "deleted"},
	{KindAttributes, "attributes"},
}

// Has reports whether any bit of o is set in k.
func (k Kind) Has(o Kind) bool {
	return k&o != 0
}

// String returns the kinds joined with "|", e.g. "modified|size".
func (k Kind) String() string {
	if k == 0 {
		return "none"
	}
	var names []string
	for _, kn := range kindNames {
		if k.Has(kn.kind) {
			names = append(names, kn.name)
		}
	}
	return strings.Join(names, "|")
}

// ParseKinds converts names such as "created" or "all" into a Kind.
// "size-changed" and "changed" are accepted as aliases.
func ParseKinds(names []string) (Kind, error) {
	var k Kind
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		switch name {
		case "":
			continue
		case "all":
			k |= KindAll
			continue
		case "size-changed", "size_changed":
			k |= KindSizeChanged
			continue
		case "changed", "write":
			k |= KindModified
			continue
		}

		found := false
		for _, kn := range kindNames {
			if kn.name == name {
				k |= kn.kind
				found = true
				break
			}
		}
		if !found {
			return 0, errors.ValidationError(fmt.Sprintf("unknown change kind %q", raw), nil).
				WithSuggestion("use created, modified, size, renamed, deleted, attributes or all")
		}
	}
	return k, nil
}

// Change describes one coalesced notification.
type Change struct {
	// Path is the absolute path of the last qualifying event in the burst.
	Path string

	// Kind is the union of kinds seen during the burst.
	Kind Kind

	// Events is the number of qualifying raw events coalesced.
	Events int

	// First is when the first event of the burst arrived.
	First time.Time

	// At is when the quiet period elapsed and the notification was released.
	At time.Time
}

// rawEvent is a translated event from a source.
type rawEvent struct {
	Path  string
	Kind  Kind
	IsDir bool
}
