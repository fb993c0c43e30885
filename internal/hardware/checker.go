package hardware

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/kidoz/display-priority-manager/internal/config"
)

// Checker evaluates the eligibility gates against a Prober.
type Checker struct {
	cfg        config.HardwareConfig
	log        *zap.Logger
	prober     Prober
	discrete   *regexp.Regexp
	integrated *regexp.Regexp
}

// NewChecker creates a Checker. The GPU patterns are compiled here; an
// invalid pattern is a configuration error.
func NewChecker(cfg *config.Config, log *zap.Logger, prober Prober) (*Checker, error) {
	discrete, err := regexp.Compile(cfg.Hardware.DiscretePattern)
	if err != nil {
		return nil, err
	}
	integrated, err := regexp.Compile(cfg.Hardware.IntegratedPattern)
	if err != nil {
		return nil, err
	}
	return &Checker{
		cfg:        cfg.Hardware,
		log:        log,
		prober:     prober,
		discrete:   discrete,
		integrated: integrated,
	}, nil
}

// IsEligible reports whether the fix should run on this host. force skips
// every gate.
func (c *Checker) IsEligible(ctx context.Context, force bool) bool {
	if force {
		c.log.Info("Force mode enabled - bypassing hardware checks")
		return true
	}

	if !c.checkIdentity() {
		return false
	}
	if !c.checkDiscreteGPU(ctx) {
		return false
	}
	if !c.checkDisplayCount() {
		return false
	}

	c.log.Info("Hardware configuration matches - fix is applicable")
	return true
}

func (c *Checker) checkIdentity() bool {
	vendor, product, err := c.prober.Identity()
	if err != nil {
		c.log.Info("Cannot read system identity", zap.Error(err))
		return false
	}
	c.log.Debug("System identity", zap.String("vendor", vendor), zap.String("product", product))

	if !strings.Contains(vendor, c.cfg.Vendor) || !strings.Contains(product, c.cfg.Product) {
		c.log.Info("Not a "+c.cfg.Vendor+" "+c.cfg.Product+" - fix not needed",
			zap.String("vendor", vendor),
			zap.String("product", product),
		)
		return false
	}
	return true
}

func (c *Checker) checkDiscreteGPU(ctx context.Context) bool {
	if !c.prober.DriverLoaded() {
		c.log.Info("Discrete GPU driver not loaded - fix not needed", zap.String("path", c.cfg.DriverPath))
		return false
	}

	devices, err := c.prober.PCIDevices(ctx)
	if err != nil {
		c.log.Info("Cannot enumerate PCI devices", zap.Error(err))
		return false
	}
	discrete, integrated := c.classifyGPUs(devices)
	if !discrete {
		c.log.Info("No discrete GPU found on the PCI bus - fix not needed")
		return false
	}
	if integrated {
		c.log.Info("Integrated graphics active (hybrid mode) - fix not needed")
		return false
	}
	return true
}

func (c *Checker) checkDisplayCount() bool {
	n, err := c.connectedDisplays()
	if err != nil {
		c.log.Info("Cannot enumerate display connectors", zap.Error(err))
		return false
	}
	c.log.Debug("Connected displays", zap.Int("count", n))
	if n < c.cfg.MinDisplays {
		c.log.Info("Not enough displays connected - fix not needed",
			zap.Int("connected", n),
			zap.Int("required", c.cfg.MinDisplays),
		)
		return false
	}
	return true
}

func (c *Checker) classifyGPUs(devices []string) (discrete, integrated bool) {
	for _, d := range devices {
		if c.discrete.MatchString(d) {
			discrete = true
		}
		if c.integrated.MatchString(d) {
			integrated = true
		}
	}
	return discrete, integrated
}

func (c *Checker) connectedDisplays() (int, error) {
	conns, err := c.prober.Connectors()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, conn := range conns {
		if conn.Connected() {
			n++
		}
	}
	return n, nil
}

// Profile gathers every host fact without short-circuiting. Facts that
// cannot be read are left at their zero value.
func (c *Checker) Profile(ctx context.Context) HostProfile {
	var p HostProfile
	p.Vendor, p.Product, _ = c.prober.Identity()
	p.DriverLoaded = c.prober.DriverLoaded()
	if devices, err := c.prober.PCIDevices(ctx); err == nil {
		p.DiscretePresent, p.IntegratedPresent = c.classifyGPUs(devices)
	}
	p.ConnectedDisplays, _ = c.connectedDisplays()
	return p
}
