package hardware

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kidoz/display-priority-manager/internal/config"
)

func writeFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
}

// fakeSysfs lays out DMI, driver and DRM trees plus an lspci stub under a
// temp dir.
func fakeSysfs(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "dmi", "sys_vendor"), "Dell Inc.\n", 0o644)
	writeFile(t, filepath.Join(root, "dmi", "product_name"), "Precision 7780\n", 0o644)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "nvidia"), 0o755))
	writeFile(t, filepath.Join(root, "drm", "card1-eDP-1", "status"), "connected\n", 0o644)
	writeFile(t, filepath.Join(root, "drm", "card1-HDMI-A-1", "status"), "connected\n", 0o644)
	writeFile(t, filepath.Join(root, "drm", "card1-DP-1", "status"), "disconnected\n", 0o644)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "drm", "card1"), 0o755))
	writeFile(t, filepath.Join(root, "bin", "lspci"), "#!/bin/sh\n"+
		"echo '00:00.0 Host bridge: Intel Corporation Device a71d'\n"+
		"echo ''\n"+
		"echo '01:00.0 VGA compatible controller: NVIDIA Corporation AD104GLM'\n", 0o755)

	cfg := config.DefaultConfig()
	cfg.Hardware.DMIDir = filepath.Join(root, "dmi")
	cfg.Hardware.DriverPath = filepath.Join(root, "nvidia")
	cfg.Hardware.DRMDir = filepath.Join(root, "drm")
	cfg.Hardware.LspciPath = filepath.Join(root, "bin", "lspci")
	return cfg
}

func TestSysProber_Identity(t *testing.T) {
	p := NewSysProber(fakeSysfs(t))

	vendor, product, err := p.Identity()
	require.NoError(t, err)
	assert.Equal(t, "Dell Inc.", vendor)
	assert.Equal(t, "Precision 7780", product)
}

func TestSysProber_IdentityMissing(t *testing.T) {
	cfg := fakeSysfs(t)
	cfg.Hardware.DMIDir = filepath.Join(t.TempDir(), "absent")

	_, _, err := NewSysProber(cfg).Identity()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSysProber_DriverLoaded(t *testing.T) {
	cfg := fakeSysfs(t)
	assert.True(t, NewSysProber(cfg).DriverLoaded())

	cfg.Hardware.DriverPath = filepath.Join(t.TempDir(), "absent")
	assert.False(t, NewSysProber(cfg).DriverLoaded())
}

func TestSysProber_PCIDevices(t *testing.T) {
	devices, err := NewSysProber(fakeSysfs(t)).PCIDevices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"00:00.0 Host bridge: Intel Corporation Device a71d",
		"01:00.0 VGA compatible controller: NVIDIA Corporation AD104GLM",
	}, devices)
}

func TestSysProber_PCIDevicesMissingBinary(t *testing.T) {
	cfg := fakeSysfs(t)
	cfg.Hardware.LspciPath = filepath.Join(t.TempDir(), "no-lspci")

	_, err := NewSysProber(cfg).PCIDevices(context.Background())
	assert.Error(t, err)
}

func TestSysProber_Connectors(t *testing.T) {
	conns, err := NewSysProber(fakeSysfs(t)).Connectors()
	require.NoError(t, err)
	assert.Equal(t, []Connector{
		{Name: "card1-DP-1", Status: "disconnected"},
		{Name: "card1-HDMI-A-1", Status: "connected"},
		{Name: "card1-eDP-1", Status: "connected"},
	}, conns)
}

func TestSysProber_EndToEnd(t *testing.T) {
	cfg := fakeSysfs(t)
	c, err := NewChecker(cfg, zap.NewNop(), NewSysProber(cfg))
	require.NoError(t, err)

	assert.True(t, c.IsEligible(context.Background(), false))
	assert.Equal(t, 2, c.Profile(context.Background()).ConnectedDisplays)
}
