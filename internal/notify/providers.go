package notify

import "go.uber.org/fx"

// Module provides the configured Notifier.
var Module = fx.Module("notify",
	fx.Provide(New),
)
