package config

import "time"

// Config holds runtime settings for the uploader CLI.
//
// Fields:
//   - ServerURL: base URL of the ingestion gateway.
//   - Credential: the "i" credential (access token, user token or service JWT).
//   - RequestTimeout: limit for every single HTTP request.
type Config struct {
	ServerURL      string
	Credential     string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:3000"
	c.Credential = ""
	c.RequestTimeout = 5 * time.Minute
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
