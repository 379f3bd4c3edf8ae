package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the pytia configuration file (~/.config/pytia/config.yaml).
// Numeric fields are pointers so we can distinguish "not set" from zero values.
type Config struct {
	Server   string `yaml:"server"`
	Encoding string `yaml:"encoding"`

	// Sampling defaults
	Temperature  *float64 `yaml:"temperature"`
	TopK         *int64   `yaml:"top_k"`
	TopP         *float64 `yaml:"top_p"`
	MaxNewTokens *int64   `yaml:"max_new_tokens"`
	Seed         *int64   `yaml:"seed"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "pytia", "config.yaml")
}

// applyCommonConfig applies config file defaults to the shared flag variables
// when the corresponding CLI flag was not explicitly set.
func applyCommonConfig(c *cli.Command, cfg Config) {
	if cfg.Server != "" && !c.IsSet("server") && !c.IsSet("s") {
		serverURL = cfg.Server
	}
	if cfg.Encoding != "" && !c.IsSet("encoding") {
		encoding = cfg.Encoding
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applySamplingConfig applies config file sampling defaults to command
// variables when the flags were not set.
func applySamplingConfig(c *cli.Command, cfg Config,
	temp *float64, topK *int64, topP *float64, maxNewTokens *int64, seed *int64,
) {
	if cfg.Temperature != nil && temp != nil && !c.IsSet("temp") && !c.IsSet("temperature") && !c.IsSet("t") {
		*temp = *cfg.Temperature
	}
	if cfg.TopK != nil && topK != nil && !c.IsSet("top-k") && !c.IsSet("top_k") && !c.IsSet("topk") {
		*topK = *cfg.TopK
	}
	if cfg.TopP != nil && topP != nil && !c.IsSet("top-p") && !c.IsSet("top_p") && !c.IsSet("topp") {
		*topP = *cfg.TopP
	}
	if cfg.MaxNewTokens != nil && maxNewTokens != nil && !c.IsSet("max-new-tokens") {
		*maxNewTokens = *cfg.MaxNewTokens
	}
	if cfg.Seed != nil && seed != nil && !c.IsSet("seed") {
		*seed = *cfg.Seed
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't exist.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
