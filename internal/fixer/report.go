package fixer

import (
	"fmt"
	"io"
	"strings"

	"github.com/kidoz/display-priority-manager/internal/display"
)

// writeReport prints the check-mode summary of topo.
func writeReport(w io.Writer, topo display.Topology, verdict display.Verdict, fix *display.FixDecision) error {
	var b strings.Builder
	b.WriteString("Display Configuration:\n")
	b.WriteString("----------------------\n")
	if len(topo) == 0 {
		b.WriteString("  (no displays reported a priority)\n")
	}
	for _, r := range topo {
		fmt.Fprintf(&b, "  %s\n", r)
	}

	switch verdict {
	case display.FixRequired:
		fmt.Fprintf(&b, "Status: fix needed (internal display %s has priority %d)\n", fix.Internal.Name, fix.Previous)
	case display.NoFixNeeded:
		internal, _ := topo.Internal()
		fmt.Fprintf(&b, "Status: OK (internal display %s is primary)\n", internal.Name)
	default:
		b.WriteString("Status: no internal display found\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
