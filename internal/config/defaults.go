package config

import "github.com/picdock/engine/internal/model"

// CurrentVersion is the config schema version DefaultConfig and Migrate
// converge on. Bump together with a new migrateVN step in migrate.go.
const CurrentVersion = 3

// DefaultConfig returns the configuration used when no config.dat exists
// yet and when Load falls back after a corrupt/unparsable file.
func DefaultConfig() model.UserConfig {
	backends := make(map[model.BackendID]model.BackendConfig, len(model.AllBackends))
	for _, id := range model.AllBackends {
		backends[id] = model.BackendConfig{Enabled: false}
	}

	return model.UserConfig{
		ConfigVersion:     CurrentVersion,
		EnabledBackends:   nil,
		AvailableBackends: append([]model.BackendID(nil), model.AllBackends...),
		Backends:          backends,
		OutputFormat:      model.OutputDirect,
		LinkPrefixConfig: model.LinkPrefixConfig{
			Enabled:     false,
			PrefixList:  nil,
			SelectedIdx: 0,
		},
		AnalyticsEnabled: false,
	}
}
