package kscreen

import "go.uber.org/fx"

// Module provides the kscreen-doctor client for fx injection.
var Module = fx.Module("kscreen",
	fx.Provide(NewDoctor),
)
