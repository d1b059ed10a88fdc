// Package label builds the header string embedded in each streamed
// archive so volumes stay distinguishable when catalogued.
package label

import (
	"path"
	"time"

	"github.com/rudolphpienaar/backupmgr/internal/archive"
)

// DefaultMaxLen bounds the label so tape cataloguing tools keep it intact.
const DefaultMaxLen = 80

const dateLayout = "01.02.2006"

// Base is the archive::host:path prefix shared by the label and the
// receiver-side filename.
func Base(name, host, fsPath string) string {
	return name + "::" + host + ":" + fsPath
}

// Build produces "<name>::<host>:<path>-<rule>-<MM.DD.YYYY>". When the
// result exceeds maxLen the path collapses to its last segment.
func Build(name, host, fsPath string, rule archive.Rule, date time.Time, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	suffix := "-" + string(rule) + "-" + date.Format(dateLayout)
	full := Base(name, host, fsPath) + suffix
	if len([]rune(full)) <= maxLen {
		return full
	}
	return Base(name, host, path.Base(fsPath)) + suffix
}
