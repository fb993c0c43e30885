// Package hardware decides whether the host is the docked hybrid-GPU laptop
// the priority fix targets.
package hardware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kidoz/display-priority-manager/internal/config"
)

// HostProfile is a snapshot of the host facts the eligibility gates read.
type HostProfile struct {
	Vendor            string
	Product           string
	DriverLoaded      bool
	DiscretePresent   bool
	IntegratedPresent bool
	ConnectedDisplays int
}

// Connector is one DRM connector with its raw status attribute.
type Connector struct {
	Name   string
	Status string
}

// Connected reports whether the connector status is exactly "connected".
func (c Connector) Connected() bool {
	return c.Status == "connected"
}

// Prober reads host facts. All methods are read-only.
type Prober interface {
	// Identity returns the DMI system vendor and product name.
	Identity() (vendor, product string, err error)
	// DriverLoaded reports whether the discrete GPU driver interface exists.
	DriverLoaded() bool
	// PCIDevices returns one line per enumerated PCI device.
	PCIDevices(ctx context.Context) ([]string, error)
	// Connectors lists DRM connectors and their status.
	Connectors() ([]Connector, error)
}

// SysProber reads sysfs, procfs and lspci.
type SysProber struct {
	cfg config.HardwareConfig
}

// NewSysProber creates a prober rooted at the configured paths.
func NewSysProber(cfg *config.Config) *SysProber {
	return &SysProber{cfg: cfg.Hardware}
}

// Identity implements Prober.
func (p *SysProber) Identity() (string, string, error) {
	vendor, err := readAttr(filepath.Join(p.cfg.DMIDir, "sys_vendor"))
	if err != nil {
		return "", "", err
	}
	product, err := readAttr(filepath.Join(p.cfg.DMIDir, "product_name"))
	if err != nil {
		return vendor, "", err
	}
	return vendor, product, nil
}

// DriverLoaded implements Prober.
func (p *SysProber) DriverLoaded() bool {
	_, err := os.Stat(p.cfg.DriverPath)
	return err == nil
}

// PCIDevices implements Prober.
func (p *SysProber) PCIDevices(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, p.cfg.LspciPath) //nolint:gosec // G204: binary path comes from validated config
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", p.cfg.LspciPath, err)
	}

	var lines []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// Connectors implements Prober. Entries without a readable status are
// skipped.
func (p *SysProber) Connectors() ([]Connector, error) {
	matches, err := filepath.Glob(filepath.Join(p.cfg.DRMDir, "card*-*", "status"))
	if err != nil {
		return nil, fmt.Errorf("invalid DRM path %q: %w", p.cfg.DRMDir, err)
	}
	sort.Strings(matches)

	conns := make([]Connector, 0, len(matches))
	for _, m := range matches {
		status, err := readAttr(m)
		if err != nil {
			continue
		}
		conns = append(conns, Connector{
			Name:   filepath.Base(filepath.Dir(m)),
			Status: status,
		})
	}
	return conns, nil
}

func readAttr(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is built from configured sysfs roots
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("attribute %s not found: %w", path, err)
		}
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}
