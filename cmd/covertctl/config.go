package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// serviceConfig holds local settings for one covertctl endpoint. The channel
// itself is described by the profile it points at.
type serviceConfig struct {
	Name        string
	ProfilePath string
	LogLevel    string
	StatusAddr  string
	CorsOrigins []string
}

type fileConfig struct {
	Name        string   `toml:"name"`
	Profile     string   `toml:"profile"`
	LogLevel    string   `toml:"log_level"`
	StatusAddr  string   `toml:"status_addr"`
	CorsOrigins []string `toml:"cors_origins"`
}

func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		Name:        "covertctl",
		ProfilePath: "profile.toml",
		LogLevel:    "info",
	}
}

func loadServiceConfig(path string) (serviceConfig, error) {
	cfg := defaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serviceConfig{}, fmt.Errorf("load covertctl config: %w", err)
	}

	if meta.IsDefined("name") {
		if name := strings.TrimSpace(raw.Name); name != "" {
			cfg.Name = name
		}
	}

	if meta.IsDefined("profile") {
		profile := strings.TrimSpace(raw.Profile)
		if profile == "" {
			return serviceConfig{}, fmt.Errorf("load covertctl config: empty profile path")
		}
		if !filepath.IsAbs(profile) {
			profile = filepath.Join(filepath.Dir(path), profile)
		}
		cfg.ProfilePath = profile
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("status_addr") {
		cfg.StatusAddr = strings.TrimSpace(raw.StatusAddr)
	}

	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}

	return cfg, nil
}

func normalizeOrigins(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
