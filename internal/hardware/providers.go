package hardware

import "go.uber.org/fx"

// Module provides the eligibility checker backed by sysfs probing.
var Module = fx.Module("hardware",
	fx.Provide(
		fx.Annotate(NewSysProber, fx.As(new(Prober))),
		NewChecker,
	),
)
