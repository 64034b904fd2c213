package acl

import (
	"fmt"
	"log/slog"

	"github.com/sentra-id/sentra/internal/shared"
)

// ErrNoApplicableEntry is returned when the ACL chain is exhausted without a
// matching entry. Callers must treat it as "denied"; it satisfies
// errors.Is(err, shared.ErrAccessDenied) so it never leaks as a distinct
// external outcome, while staying distinguishable for auditing.
var ErrNoApplicableEntry = fmt.Errorf("%w: no applicable entry", shared.ErrAccessDenied)

// Evaluator decides whether a required permission is granted for a SID set.
// It is a pure function of its inputs and safe for unbounded concurrent use.
type Evaluator struct {
	logger *slog.Logger
}

// NewEvaluator constructs an Evaluator. The logger may be nil.
func NewEvaluator(logger *slog.Logger) *Evaluator {
	return &Evaluator{logger: logger}
}

// IsGranted walks the ACL's entries in ascending position order. An entry is
// applicable when its SID is in the caller's set and its permission matches
// one of the required permissions exactly. The first applicable entry wins:
// granting yields true, denying yields false immediately even if a later
// entry would grant. When no local entry applies and the list inherits, the
// walk repeats on the parent with the same SIDs and permissions. An
// exhausted chain returns ErrNoApplicableEntry.
//
// adminMode marks administrative inspection: the decision is not logged so
// probing an ACL leaves no decision trace.
func (e *Evaluator) IsGranted(list *ACL, required []Permission, sids []SID, adminMode bool) (bool, error) {
	if list == nil {
		return false, ErrNoApplicableEntry
	}
	sidSet := make(map[SID]struct{}, len(sids))
	for _, sid := range sids {
		sidSet[sid] = struct{}{}
	}

	for node := list; node != nil; {
		for _, entry := range node.Entries {
			if !applicable(entry, required, sidSet) {
				continue
			}
			if !adminMode && e.logger != nil {
				e.logger.Debug("acl decision",
					slog.String("object", node.Object.String()),
					slog.String("sid", string(entry.SID)),
					slog.String("permission", entry.Permission.String()),
					slog.Bool("granting", entry.Granting))
			}
			return entry.Granting, nil
		}
		if !node.InheritParent {
			break
		}
		node = node.Parent
	}
	return false, ErrNoApplicableEntry
}

func applicable(entry Entry, required []Permission, sids map[SID]struct{}) bool {
	if _, ok := sids[entry.SID]; !ok {
		return false
	}
	for _, p := range required {
		if entry.Permission == p {
			return true
		}
	}
	return false
}
