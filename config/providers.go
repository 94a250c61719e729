package config

// ProviderConfig is one configured LLM backend. Unset optional fields fall
// back to per-adapter defaults at construction time.
type ProviderConfig struct {
	ID          string  `toml:"id"`
	Type        string  `toml:"type"`
	BaseURL     string  `toml:"base_url"`
	Model       string  `toml:"model"`
	APIKey      string  `toml:"api_key"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
	TimeoutMS   int     `toml:"timeout_ms"`
	Enabled     bool    `toml:"enabled"`
}

// ToolServerConfig describes the external tool server (MCP endpoint) and the
// ambient context folded into tool calls.
type ToolServerConfig struct {
	ServerURL string            `toml:"server_url"`
	Headers   map[string]string `toml:"headers"`
	SiteID    string            `toml:"site_id"`
	AuthToken string            `toml:"auth_token"`
}

// SessionConfig bounds per-session state. Cleanup interval and session
// timeout are two separately configurable knobs.
type SessionConfig struct {
	HistoryCap             int `toml:"history_cap"`
	TimeoutMinutes         int `toml:"timeout_minutes"`
	CleanupIntervalMinutes int `toml:"cleanup_interval_minutes"`
}
