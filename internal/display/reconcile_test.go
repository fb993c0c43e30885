package display

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(name string, prio int) DisplayRecord {
	return DisplayRecord{Name: name, Priority: prio, Classification: NewClassifier(nil).Classify(name)}
}

// applied returns t with the priorities from d, as the compositor would
// report them after the fix.
func applied(t Topology, d *FixDecision) Topology {
	out := make(Topology, len(t))
	copy(out, t)
	for _, a := range d.Assignments() {
		for i := range out {
			if out[i].Name == a.Name {
				out[i].Priority = a.Priority
			}
		}
	}
	return out
}

func TestClassifier(t *testing.T) {
	c := NewClassifier(nil)

	tests := []struct {
		name string
		want Classification
	}{
		{"eDP-1", Internal},
		{"eDP-2", Internal},
		{"LVDS-1", Internal},
		{"HDMI-A-1", External},
		{"DP-3", External},
		{"DVI-I-1", External},
		{"", External},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.name))
		})
	}

	t.Run("custom patterns", func(t *testing.T) {
		c := NewClassifier([]string{"DSI", ""})
		assert.Equal(t, Internal, c.Classify("DSI-1"))
		assert.Equal(t, External, c.Classify("eDP-1"))
	})

	t.Run("zero value uses defaults", func(t *testing.T) {
		var c Classifier
		assert.Equal(t, Internal, c.Classify("eDP-1"))
	})
}

func TestReconcile_FixRequired(t *testing.T) {
	for n := 0; n <= 4; n++ {
		t.Run(fmt.Sprintf("%d externals", n), func(t *testing.T) {
			topo := Topology{}
			for i := 0; i < n; i++ {
				topo = append(topo, rec(fmt.Sprintf("DP-%d", i+1), i+1))
			}
			topo = append(topo, rec("eDP-1", n+1))
			if n == 0 {
				// A lone panel with a non-primary priority still gets fixed.
				topo[0].Priority = 2
			}

			verdict, d := Reconcile(topo)
			require.Equal(t, FixRequired, verdict)
			require.NotNil(t, d)

			assert.Equal(t, Assignment{Name: "eDP-1", Priority: 1}, d.Internal)
			require.Len(t, d.Externals, n)
			for i, a := range d.Externals {
				assert.Equal(t, fmt.Sprintf("DP-%d", i+1), a.Name)
				assert.Equal(t, i+2, a.Priority)
			}
		})
	}
}

func TestReconcile_PreservesParseOrder(t *testing.T) {
	topo := Topology{
		rec("HDMI-A-1", 3),
		rec("eDP-1", 2),
		rec("DP-1", 1),
	}

	verdict, d := Reconcile(topo)
	require.Equal(t, FixRequired, verdict)
	assert.Equal(t, 2, d.Previous)
	assert.Equal(t, []Assignment{
		{Name: "eDP-1", Priority: 1},
		{Name: "HDMI-A-1", Priority: 2},
		{Name: "DP-1", Priority: 3},
	}, d.Assignments())
}

func TestReconcile_NoFixNeeded(t *testing.T) {
	topo := Topology{rec("DP-1", 2), rec("eDP-1", 1), rec("HDMI-A-1", 3)}

	verdict, d := Reconcile(topo)
	assert.Equal(t, NoFixNeeded, verdict)
	assert.Nil(t, d)
}

func TestReconcile_NotApplicable(t *testing.T) {
	tests := []struct {
		name string
		topo Topology
	}{
		{"empty", nil},
		{"one external", Topology{rec("HDMI-A-1", 1)}},
		{"many externals", Topology{rec("HDMI-A-1", 2), rec("DP-1", 1), rec("DP-2", 3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, d := Reconcile(tt.topo)
			assert.Equal(t, NotApplicable, verdict)
			assert.Nil(t, d)
		})
	}
}

func TestReconcile_FirstInternalWins(t *testing.T) {
	topo := Topology{rec("eDP-1", 2), rec("LVDS-1", 1), rec("DP-1", 1)}

	verdict, d := Reconcile(topo)
	require.Equal(t, FixRequired, verdict)
	assert.Equal(t, "eDP-1", d.Internal.Name)
	assert.Equal(t, []Assignment{{Name: "DP-1", Priority: 2}}, d.Externals)
}

func TestReconcile_Idempotent(t *testing.T) {
	topo := Topology{rec("HDMI-A-1", 1), rec("DP-2", 2), rec("eDP-1", 3)}

	verdict, d := Reconcile(topo)
	require.Equal(t, FixRequired, verdict)

	verdict, d = Reconcile(applied(topo, d))
	assert.Equal(t, NoFixNeeded, verdict)
	assert.Nil(t, d)
}

func TestTopologyHelpers(t *testing.T) {
	topo := Topology{rec("HDMI-A-1", 1), rec("eDP-1", 2)}

	r, ok := topo.Internal()
	require.True(t, ok)
	assert.True(t, r.IsInternal())
	assert.Equal(t, "eDP-1: priority=2 (internal)", r.String())

	_, ok = Topology(topo.Externals()).Internal()
	assert.False(t, ok)

	assert.Equal(t, []DisplayRecord{rec("HDMI-A-1", 1)}, topo.Externals())
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "not-applicable", NotApplicable.String())
	assert.Equal(t, "no-fix-needed", NoFixNeeded.String())
	assert.Equal(t, "fix-required", FixRequired.String())
}
