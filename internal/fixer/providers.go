package fixer

import (
	"go.uber.org/fx"

	"github.com/kidoz/display-priority-manager/internal/hardware"
	"github.com/kidoz/display-priority-manager/internal/kscreen"
	"github.com/kidoz/display-priority-manager/internal/notify"
)

// Module provides the Fixer and everything it depends on.
var Module = fx.Module("fixer",
	fx.Provide(
		New,
		func(c *hardware.Checker) Gate { return c },
		func(d *kscreen.Doctor) Doctor { return d },
	),
	hardware.Module,
	kscreen.Module,
	notify.Module,
)
