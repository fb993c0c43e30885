package display

// Verdict is the outcome of Reconcile.
type Verdict int

const (
	// NotApplicable means there is no internal panel to promote.
	NotApplicable Verdict = iota
	// NoFixNeeded means the internal panel is already primary.
	NoFixNeeded
	// FixRequired means a FixDecision was produced.
	FixRequired
)

func (v Verdict) String() string {
	switch v {
	case NoFixNeeded:
		return "no-fix-needed"
	case FixRequired:
		return "fix-required"
	default:
		return "not-applicable"
	}
}

// Reconcile decides whether the internal panel must be promoted to primary.
// A FixDecision is returned only with FixRequired. Externals keep their
// topology order and are never re-sorted by current priority. Internal
// records after the first are left untouched.
func Reconcile(t Topology) (Verdict, *FixDecision) {
	internal, ok := t.Internal()
	if !ok {
		return NotApplicable, nil
	}
	if internal.Priority == PrimaryPriority {
		return NoFixNeeded, nil
	}

	d := &FixDecision{
		Internal: Assignment{Name: internal.Name, Priority: PrimaryPriority},
		Previous: internal.Priority,
	}
	next := PrimaryPriority + 1
	for _, r := range t.Externals() {
		d.Externals = append(d.Externals, Assignment{Name: r.Name, Priority: next})
		next++
	}
	return FixRequired, d
}
