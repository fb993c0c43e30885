package hardware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kidoz/display-priority-manager/internal/config"
)

type fakeProber struct {
	vendor, product string
	identityErr     error
	driver          bool
	devices         []string
	devicesErr      error
	connectors      []Connector
	connectorsErr   error

	identityCalls int
	pciCalls      int
}

func (f *fakeProber) Identity() (string, string, error) {
	f.identityCalls++
	return f.vendor, f.product, f.identityErr
}

func (f *fakeProber) DriverLoaded() bool { return f.driver }

func (f *fakeProber) PCIDevices(context.Context) ([]string, error) {
	f.pciCalls++
	return f.devices, f.devicesErr
}

func (f *fakeProber) Connectors() ([]Connector, error) { return f.connectors, f.connectorsErr }

// eligibleHost is a docked Precision 7780 running on the discrete GPU only.
func eligibleHost() *fakeProber {
	return &fakeProber{
		vendor:  "Dell Inc.",
		product: "Precision 7780",
		driver:  true,
		devices: []string{
			"00:00.0 Host bridge: Intel Corporation Device a71d",
			"01:00.0 VGA compatible controller: NVIDIA Corporation AD104GLM [RTX 3500 Ada Generation Laptop GPU]",
		},
		connectors: []Connector{
			{Name: "card1-eDP-1", Status: "connected"},
			{Name: "card1-HDMI-A-1", Status: "connected"},
			{Name: "card1-DP-1", Status: "disconnected"},
		},
	}
}

func newTestChecker(t *testing.T, p Prober) (*Checker, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	c, err := NewChecker(config.DefaultConfig(), zap.New(core), p)
	require.NoError(t, err)
	return c, logs
}

func TestIsEligible(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*fakeProber)
		want    bool
		wantLog string
	}{
		{
			name: "eligible host",
			want: true,
		},
		{
			name:    "wrong vendor",
			mutate:  func(p *fakeProber) { p.vendor = "LENOVO" },
			wantLog: "Not a Dell Precision 7780 - fix not needed",
		},
		{
			name:    "wrong product",
			mutate:  func(p *fakeProber) { p.product = "Precision 7680" },
			wantLog: "Not a Dell Precision 7780 - fix not needed",
		},
		{
			name:    "identity match is case-sensitive",
			mutate:  func(p *fakeProber) { p.vendor = "DELL INC." },
			wantLog: "Not a Dell Precision 7780 - fix not needed",
		},
		{
			name:    "identity unreadable",
			mutate:  func(p *fakeProber) { p.identityErr = errors.New("permission denied") },
			wantLog: "Cannot read system identity",
		},
		{
			name:    "driver not loaded",
			mutate:  func(p *fakeProber) { p.driver = false },
			wantLog: "Discrete GPU driver not loaded - fix not needed",
		},
		{
			name:    "no discrete device",
			mutate:  func(p *fakeProber) { p.devices = p.devices[:1] },
			wantLog: "No discrete GPU found on the PCI bus - fix not needed",
		},
		{
			name: "hybrid mode",
			mutate: func(p *fakeProber) {
				p.devices = append(p.devices, "00:02.0 VGA compatible controller: Intel Corporation Raptor Lake-S UHD Graphics")
			},
			wantLog: "Integrated graphics active (hybrid mode) - fix not needed",
		},
		{
			name:    "lspci failure fails the gate",
			mutate:  func(p *fakeProber) { p.devicesErr = errors.New("exec: not found") },
			wantLog: "Cannot enumerate PCI devices",
		},
		{
			name:    "single display",
			mutate:  func(p *fakeProber) { p.connectors = p.connectors[:1] },
			wantLog: "Not enough displays connected - fix not needed",
		},
		{
			name: "disconnected is not connected",
			mutate: func(p *fakeProber) {
				p.connectors = []Connector{
					{Name: "card1-eDP-1", Status: "connected"},
					{Name: "card1-DP-1", Status: "disconnected"},
					{Name: "card1-DP-2", Status: "disconnected"},
				}
			},
			wantLog: "Not enough displays connected - fix not needed",
		},
		{
			name:    "connector enumeration failure",
			mutate:  func(p *fakeProber) { p.connectorsErr = errors.New("bad glob") },
			wantLog: "Cannot enumerate display connectors",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := eligibleHost()
			if tt.mutate != nil {
				tt.mutate(p)
			}
			c, logs := newTestChecker(t, p)

			assert.Equal(t, tt.want, c.IsEligible(context.Background(), false))
			if tt.wantLog != "" {
				assert.Equal(t, 1, logs.FilterMessage(tt.wantLog).Len(), "expected log %q", tt.wantLog)
			}
		})
	}
}

func TestIsEligible_ShortCircuits(t *testing.T) {
	p := eligibleHost()
	p.vendor = "HP"
	c, _ := newTestChecker(t, p)

	assert.False(t, c.IsEligible(context.Background(), false))
	assert.Equal(t, 0, p.pciCalls, "later gates must not run after the identity gate fails")
}

func TestIsEligible_ForceBypassesAllGates(t *testing.T) {
	p := &fakeProber{identityErr: errors.New("no dmi"), devicesErr: errors.New("no lspci")}
	c, logs := newTestChecker(t, p)

	assert.True(t, c.IsEligible(context.Background(), true))
	assert.Equal(t, 0, p.identityCalls)
	assert.Equal(t, 1, logs.FilterMessage("Force mode enabled - bypassing hardware checks").Len())
}

func TestIsEligible_CustomMinimum(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Hardware.MinDisplays = 3
	c, err := NewChecker(cfg, zap.NewNop(), eligibleHost())
	require.NoError(t, err)

	assert.False(t, c.IsEligible(context.Background(), false))
}

func TestNewChecker_InvalidPattern(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Hardware.DiscretePattern = "(["
	_, err := NewChecker(cfg, zap.NewNop(), eligibleHost())
	assert.Error(t, err)
}

func TestProfile(t *testing.T) {
	p := eligibleHost()
	p.devices = append(p.devices, "00:02.0 VGA compatible controller: Intel Corporation UHD Graphics 770")
	c, _ := newTestChecker(t, p)

	assert.Equal(t, HostProfile{
		Vendor:            "Dell Inc.",
		Product:           "Precision 7780",
		DriverLoaded:      true,
		DiscretePresent:   true,
		IntegratedPresent: true,
		ConnectedDisplays: 2,
	}, c.Profile(context.Background()))
}

func TestProfile_UnreadableFactsAreZero(t *testing.T) {
	p := &fakeProber{
		identityErr:   errors.New("no dmi"),
		devicesErr:    errors.New("no lspci"),
		connectorsErr: errors.New("no drm"),
	}
	c, _ := newTestChecker(t, p)

	assert.Equal(t, HostProfile{}, c.Profile(context.Background()))
}
