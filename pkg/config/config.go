// Package config loads the opsdash application configuration from the
// environment. All settings have working defaults so the binary runs with
// mock data out of the box.
package config

import (
	"encoding/json"
	"strings"

	"github.com/spf13/viper"
)

// Transport kinds accepted for the bridge.
const (
	TransportStdio          = "stdio"
	TransportStreamableHTTP = "streamable-http"
)

// Amazon holds the PAAPI credentials. Missing credentials fall back to
// "mock" so local runs against the mock data source keep working.
type Amazon struct {
	AccessKey    string
	SecretKey    string
	AssociateTag string
	Marketplace  string
}

// Mock reports whether the credentials are the mock fallback.
func (a Amazon) Mock() bool {
	return a.AccessKey == "" || a.AccessKey == "mock" ||
		a.SecretKey == "" || a.SecretKey == "mock"
}

// Dashboard holds the reporting tuning knobs.
type Dashboard struct {
	Marketplace string
	WindowDays  int
	TopN        int
}

// Storage holds the SQLite persistence settings.
type Storage struct {
	Enabled   bool
	DBPath    string
	ExportDir string
}

// OpenAI holds the language-model client settings.
type OpenAI struct {
	APIKey      string
	Model       string
	Temperature float64
}

// Bridge holds the settings that determine how the client side reaches the
// operation host. Changing any of these fields changes the bridge signature
// and triggers a reconnect on the next call.
type Bridge struct {
	// Transport is either "stdio" or "streamable-http".
	Transport string
	// Command, Args and Env configure the stdio subprocess. An empty
	// Command means "re-exec the current binary in serve mode".
	Command string
	Args    []string
	Env     map[string]string
	// URL is the streamable HTTP endpoint, e.g. http://localhost:4483/mcp.
	URL string
}

// Config is the top-level application configuration.
type Config struct {
	Amazon    Amazon
	Dashboard Dashboard
	Storage   Storage
	OpenAI    OpenAI
	Bridge    Bridge
}

// newViper builds a viper instance with all keys bound to their
// environment variables and defaults applied.
func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("amazon.marketplace", "US")
	v.SetDefault("dashboard.marketplace", "US")
	v.SetDefault("dashboard.window_days", 7)
	v.SetDefault("dashboard.top_n", 20)
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.db_path", "opsdash.sqlite3")
	v.SetDefault("storage.export_dir", "trusted_directories/exports")
	v.SetDefault("openai.model", "gpt-5-mini")
	v.SetDefault("openai.temperature", 0.0)
	v.SetDefault("bridge.transport", TransportStdio)
	v.SetDefault("bridge.url", "http://localhost:4483/mcp")

	// Environment variable names keep the shapes the deployment scripts
	// already use (AMAZON_*, DASHBOARD_*, STORAGE_*, OPENAI_*, MCP_BRIDGE_*).
	bindings := map[string]string{
		"amazon.access_key":     "AMAZON_ACCESS_KEY",
		"amazon.secret_key":     "AMAZON_SECRET_KEY",
		"amazon.associate_tag":  "AMAZON_ASSOCIATE_TAG",
		"amazon.marketplace":    "AMAZON_MARKETPLACE",
		"dashboard.marketplace": "DASHBOARD_MARKETPLACE",
		"dashboard.window_days": "DASHBOARD_WINDOW_DAYS",
		"dashboard.top_n":       "DASHBOARD_TOP_N",
		"storage.enabled":       "STORAGE_ENABLED",
		"storage.db_path":       "STORAGE_DB_PATH",
		"storage.export_dir":    "STORAGE_EXPORT_DIR",
		"openai.api_key":        "OPENAI_API_KEY",
		"openai.model":          "OPENAI_MODEL",
		"openai.temperature":    "OPENAI_TEMPERATURE",
		"bridge.transport":      "MCP_BRIDGE_TRANSPORT",
		"bridge.command":        "MCP_BRIDGE_COMMAND",
		"bridge.args":           "MCP_BRIDGE_ARGS",
		"bridge.env":            "MCP_BRIDGE_ENV",
		"bridge.url":            "MCP_BRIDGE_URL",
	}
	for key, env := range bindings {
		// BindEnv only fails on an empty key.
		_ = v.BindEnv(key, env)
	}

	return v
}

// Load reads the configuration from the environment.
func Load() *Config {
	v := newViper()

	amazon := Amazon{
		AccessKey:    v.GetString("amazon.access_key"),
		SecretKey:    v.GetString("amazon.secret_key"),
		AssociateTag: v.GetString("amazon.associate_tag"),
		Marketplace:  v.GetString("amazon.marketplace"),
	}
	if amazon.Mock() {
		// Credential fallback keeps mock-only runs from failing at startup.
		amazon.AccessKey = "mock"
		amazon.SecretKey = "mock"
	}

	return &Config{
		Amazon: amazon,
		Dashboard: Dashboard{
			Marketplace: v.GetString("dashboard.marketplace"),
			WindowDays:  v.GetInt("dashboard.window_days"),
			TopN:        v.GetInt("dashboard.top_n"),
		},
		Storage: Storage{
			Enabled:   v.GetBool("storage.enabled"),
			DBPath:    v.GetString("storage.db_path"),
			ExportDir: v.GetString("storage.export_dir"),
		},
		OpenAI: OpenAI{
			APIKey:      v.GetString("openai.api_key"),
			Model:       v.GetString("openai.model"),
			Temperature: v.GetFloat64("openai.temperature"),
		},
		Bridge: Bridge{
			Transport: v.GetString("bridge.transport"),
			Command:   v.GetString("bridge.command"),
			Args:      ParseBridgeArgs(v.GetString("bridge.args")),
			Env:       ParseBridgeEnv(v.GetString("bridge.env")),
			URL:       v.GetString("bridge.url"),
		},
	}
}

// ParseBridgeArgs parses the subprocess argument list. The value is either a
// JSON array of strings or a plain space-separated string; anything else
// degrades to space splitting.
func ParseBridgeArgs(raw string) []string {
	if raw == "" {
		return nil
	}
	var parsed []string
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
		return parsed
	}
	return strings.Fields(raw)
}

// ParseBridgeEnv parses the subprocess environment overrides, a JSON object
// with string values. Malformed input yields nil rather than an error: the
// overrides are optional.
func ParseBridgeEnv(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	var parsed map[string]string
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil
	}
	return parsed
}
