package archive

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the cross-field invariants the
// scheduler relies on. A record failing validation is skipped, never run.
func (r *Record) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}

	if strings.ContainsAny(r.Meta.Name, "/\\") {
		return fmt.Errorf("meta.name %q must not contain path separators", r.Meta.Name)
	}
	if len(r.Targets) == 0 {
		return fmt.Errorf("archive %s has no targets", r.Meta.Name)
	}
	if r.Worker.Default.ScriptDir == "" {
		return fmt.Errorf("archive %s: worker.default.scriptDir is required", r.Meta.Name)
	}

	for i, rule := range r.Schedule.rules() {
		if rule != "" && !rule.Valid() {
			return fmt.Errorf("archive %s: schedule day %d has unknown rule %q", r.Meta.Name, i, rule)
		}
		if rule == RuleNone || rule == "" {
			continue
		}
		if r.Storage.TotalSets(rule) < 1 {
			return fmt.Errorf("archive %s: schedule uses %s but %sSets < 1", r.Meta.Name, rule, rule)
		}
	}

	for _, rule := range []Rule{RuleMonthly, RuleWeekly, RuleDaily} {
		total := r.Storage.TotalSets(rule)
		if v, ok := r.State.CurrentSet.Get(rule); ok && total > 0 && (v < 0 || v >= total) {
			return fmt.Errorf("archive %s: currentSet.%s=%d outside [0,%d)", r.Meta.Name, rule, v, total)
		}
	}

	switch r.State.Status {
	case StatusOK, StatusFailed, StatusNone, "":
	default:
		return fmt.Errorf("archive %s: unknown status %q", r.Meta.Name, r.State.Status)
	}

	return nil
}
