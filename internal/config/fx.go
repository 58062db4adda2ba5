package config

import "go.uber.org/fx"

// Module provides application and ledger policy configuration.
var Module = fx.Module("config",
	fx.Provide(
		Load,
		NewLedgerConfigHolder,
	),
)
