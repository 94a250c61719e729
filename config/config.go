package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the resolved runtime configuration. The environment lock that
// decides whether end users may edit provider/tool settings lives outside
// this module; Load only consumes the already-validated file plus the
// forced-provider override.
type Config struct {
	DataDirectory string

	Providers        []ProviderConfig
	DefaultProvider  string
	FallbackProvider string
	FailoverEnabled  bool

	Tools   ToolServerConfig
	Session SessionConfig

	StoreName           string
	DefaultSystemPrompt string
}

type fileConfig struct {
	DataDirectory       string           `toml:"data_directory"`
	DefaultProvider     string           `toml:"default_provider"`
	FallbackProvider    string           `toml:"fallback_provider"`
	FailoverEnabled     *bool            `toml:"failover_enabled"`
	StoreName           string           `toml:"store_name"`
	DefaultSystemPrompt string           `toml:"default_system_prompt,omitempty"`
	Providers           []ProviderConfig `toml:"providers"`
	Tools               ToolServerConfig `toml:"tools"`
	Session             SessionConfig    `toml:"session"`
}

var Debug = false
var DebugLog *log.Logger

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// ProviderByID returns the configured provider entry with the given id.
func (c *Config) ProviderByID(id string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.ID == id {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

func (c *Config) applyEnvOverrides() {
	if dataDir := os.Getenv("STORECHAT_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if forced := os.Getenv("STORECHAT_PROVIDER"); forced != "" {
		c.DefaultProvider = forced
	}
	if url := os.Getenv("STORECHAT_MCP_URL"); url != "" {
		c.Tools.ServerURL = url
	}
	if token := os.Getenv("STORECHAT_MCP_TOKEN"); token != "" {
		c.Tools.AuthToken = token
	}

	// Per-provider API keys: STORECHAT_OPENAI_API_KEY etc.
	for i := range c.Providers {
		envKey := "STORECHAT_" + strings.ToUpper(c.Providers[i].ID) + "_API_KEY"
		if key := os.Getenv(envKey); key != "" {
			c.Providers[i].APIKey = key
		}
	}
}

func CheckDebug() bool {
	debug := os.Getenv("STORECHAT_DEBUG")
	return debug == "true" || debug == "1"
}

func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600: the log may contain request payloads
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (STORECHAT_DEBUG=%s) ===", os.Getenv("STORECHAT_DEBUG"))
	DebugLog.Printf("Log path: %s", logPath)
}

// Load reads the settings file (if present), applies environment overrides,
// and fills unset fields with defaults.
func Load() (*Config, error) {
	cfg := defaultConfig()

	settingsPath := GetSettingsFilePath()
	if FileExists(settingsPath) {
		var fc fileConfig
		if _, err := toml.DecodeFile(settingsPath, &fc); err != nil {
			return nil, fmt.Errorf("failed to load settings from %s: %w", settingsPath, err)
		}
		mergeFileConfig(cfg, &fc)
	}

	cfg.applyEnvOverrides()
	applyDefaults(cfg)

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

func mergeFileConfig(cfg *Config, fc *fileConfig) {
	if fc.DataDirectory != "" {
		cfg.DataDirectory = fc.DataDirectory
	}
	if fc.DefaultProvider != "" {
		cfg.DefaultProvider = fc.DefaultProvider
	}
	if fc.FallbackProvider != "" {
		cfg.FallbackProvider = fc.FallbackProvider
	}
	if fc.FailoverEnabled != nil {
		cfg.FailoverEnabled = *fc.FailoverEnabled
	}
	if fc.StoreName != "" {
		cfg.StoreName = fc.StoreName
	}
	if fc.DefaultSystemPrompt != "" {
		cfg.DefaultSystemPrompt = fc.DefaultSystemPrompt
	}
	if len(fc.Providers) > 0 {
		cfg.Providers = fc.Providers
	}
	if fc.Tools.ServerURL != "" {
		cfg.Tools = fc.Tools
	}
	if fc.Session.HistoryCap != 0 || fc.Session.TimeoutMinutes != 0 || fc.Session.CleanupIntervalMinutes != 0 {
		cfg.Session = fc.Session
	}
}
