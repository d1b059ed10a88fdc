// Package rotation drives the modular counters that cycle an archive
// through its pool of destination sets.
package rotation

import (
	"fmt"

	"github.com/rudolphpienaar/backupmgr/internal/archive"
)

// PeekNext returns the set index the next successful run of the rule
// will write to, without mutating the record: 0 when the counter has
// never advanced, otherwise the counter plus one, modulo the pool size.
func PeekNext(rec *archive.Record, rule archive.Rule) (int, error) {
	total := rec.Storage.TotalSets(rule)
	if total < 1 {
		return 0, fmt.Errorf("archive %s: rule %s has no destination sets", rec.Meta.Name, rule)
	}
	current, ok := rec.State.CurrentSet.Get(rule)
	if !ok {
		return 0, nil
	}
	return (current + 1) % total, nil
}

// Advance commits the rotation after a fully successful archive. Called
// exactly once per archive completion; the stored value is the set the
// run just wrote to, and PeekNext now points at tomorrow's volume.
func Advance(rec *archive.Record, rule archive.Rule) (int, error) {
	next, err := PeekNext(rec, rule)
	if err != nil {
		return 0, err
	}
	rec.State.CurrentSet.Set(rule, next)
	return next, nil
}
