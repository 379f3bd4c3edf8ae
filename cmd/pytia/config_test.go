package main

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestConfigUnmarshalDistinguishesUnset(t *testing.T) {
	t.Parallel()

	data := []byte("server: http://model:9000\ntemperature: 0\ntop_p: 0.9\n")
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.Server != "http://model:9000" {
		t.Errorf("server: got %q", cfg.Server)
	}
	if cfg.Temperature == nil || *cfg.Temperature != 0 {
		t.Errorf("temperature should be set to 0, got %v", cfg.Temperature)
	}
	if cfg.TopP == nil || *cfg.TopP != 0.9 {
		t.Errorf("top_p: got %v", cfg.TopP)
	}
	if cfg.TopK != nil {
		t.Errorf("top_k should be unset, got %v", *cfg.TopK)
	}
	if cfg.Seed != nil {
		t.Errorf("seed should be unset, got %v", *cfg.Seed)
	}
}
