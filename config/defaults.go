package config

const (
	DefaultHistoryCap      = 20
	DefaultSessionTimeout  = 30 // minutes
	DefaultCleanupInterval = 5  // minutes

	DefaultProviderTimeoutMS = 30000
)

func defaultConfig() *Config {
	return &Config{
		DataDirectory:   "~/.local/share/storechat",
		FailoverEnabled: true,
		StoreName:       "our store",
		Session: SessionConfig{
			HistoryCap:             DefaultHistoryCap,
			TimeoutMinutes:         DefaultSessionTimeout,
			CleanupIntervalMinutes: DefaultCleanupInterval,
		},
	}
}

// applyDefaults fills zero values left after file load and env overrides.
func applyDefaults(cfg *Config) {
	if cfg.Session.HistoryCap <= 0 {
		cfg.Session.HistoryCap = DefaultHistoryCap
	}
	if cfg.Session.TimeoutMinutes <= 0 {
		cfg.Session.TimeoutMinutes = DefaultSessionTimeout
	}
	if cfg.Session.CleanupIntervalMinutes <= 0 {
		cfg.Session.CleanupIntervalMinutes = DefaultCleanupInterval
	}
	for i := range cfg.Providers {
		if cfg.Providers[i].TimeoutMS <= 0 {
			cfg.Providers[i].TimeoutMS = DefaultProviderTimeoutMS
		}
	}
}
