// Package display models compositor outputs and decides how their priorities
// must change so the internal panel becomes primary.
package display

import (
	"fmt"
	"strings"
)

// PrimaryPriority is the priority the compositor gives its primary output.
const PrimaryPriority = 1

// Classification tells internal panels apart from everything else.
type Classification int

const (
	External Classification = iota
	Internal
)

func (c Classification) String() string {
	if c == Internal {
		return "internal"
	}
	return "external"
}

// DefaultInternalPatterns match embedded-panel (eDP) and legacy-panel (LVDS)
// connector names.
var DefaultInternalPatterns = []string{"eDP", "LVDS"}

// Classifier decides whether an output name belongs to the internal panel.
type Classifier struct {
	patterns []string
}

// NewClassifier returns a classifier that treats names containing any of the
// given substrings as internal. Empty patterns fall back to the defaults.
func NewClassifier(patterns []string) Classifier {
	var p []string
	for _, s := range patterns {
		if s != "" {
			p = append(p, s)
		}
	}
	if len(p) == 0 {
		p = DefaultInternalPatterns
	}
	return Classifier{patterns: p}
}

// Classify returns Internal when name matches an internal naming convention.
func (c Classifier) Classify(name string) Classification {
	patterns := c.patterns
	if len(patterns) == 0 {
		patterns = DefaultInternalPatterns
	}
	for _, p := range patterns {
		if strings.Contains(name, p) {
			return Internal
		}
	}
	return External
}

// DisplayRecord is one output as reported by the compositor.
type DisplayRecord struct {
	Name           string
	Priority       int
	Classification Classification
}

// IsInternal reports whether the record is the chassis panel.
func (r DisplayRecord) IsInternal() bool {
	return r.Classification == Internal
}

func (r DisplayRecord) String() string {
	return fmt.Sprintf("%s: priority=%d (%s)", r.Name, r.Priority, r.Classification)
}

// Topology is an ordered snapshot of outputs from one status dump.
// Names are unique within a Topology.
type Topology []DisplayRecord

// Internal returns the first internal record in order.
func (t Topology) Internal() (DisplayRecord, bool) {
	for _, r := range t {
		if r.IsInternal() {
			return r, true
		}
	}
	return DisplayRecord{}, false
}

// Externals returns the external records in order.
func (t Topology) Externals() []DisplayRecord {
	var out []DisplayRecord
	for _, r := range t {
		if !r.IsInternal() {
			out = append(out, r)
		}
	}
	return out
}

// Assignment binds an output to the priority it should receive.
type Assignment struct {
	Name     string
	Priority int
}

// FixDecision is the corrective priority layout: the internal panel first,
// then the externals with priorities 2, 3, ... in topology order.
type FixDecision struct {
	Internal  Assignment
	Externals []Assignment
	// Previous is the priority the internal panel had when the decision was made.
	Previous int
}

// Assignments returns every assignment, internal first.
func (d *FixDecision) Assignments() []Assignment {
	out := make([]Assignment, 0, len(d.Externals)+1)
	out = append(out, d.Internal)
	return append(out, d.Externals...)
}
