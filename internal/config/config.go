package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	Root         string // collection root: one subdirectory per calendar
	Timezone     string // IANA timezone name, ex: "Europe/London"
	ScanWorkers  int    // parallel file parses per directory scan
	Location     *time.Location
}

// fileConfig is the optional YAML overlay loaded from DAVENDAR_CONFIG.
// Environment variables always win over file values.
type fileConfig struct {
	ListenPort string `yaml:"listen"`
	LogLevel   string `yaml:"log_level"`
	Root       string `yaml:"root"`
	Timezone   string `yaml:"timezone"`
}

func Load() *Config {
	file := loadFile(os.Getenv("DAVENDAR_CONFIG"))

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("DAVENDAR_LISTEN_PORT", fallback(file.ListenPort, ":8080")),
		ShutdownTimeout: mustDuration("DAVENDAR_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("DAVENDAR_LOG_LEVEL", fallback(file.LogLevel, "info")),
		PrettyLog: mustBool("DAVENDAR_PRETTY_LOG", true),

		// Collection settings
		Root:        getenv("DAVENDAR_ROOT", file.Root),
		Timezone:    getenv("DAVENDAR_TIMEZONE", fallback(file.Timezone, "UTC")),
		ScanWorkers: getenvInt("DAVENDAR_SCAN_WORKERS", 4),
	}

	if cfg.Root == "" {
		panic("❌ FATAL: DAVENDAR_ROOT is not set (and no root in DAVENDAR_CONFIG)")
	}
	if cfg.ScanWorkers < 1 {
		cfg.ScanWorkers = 1
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid timezone %q: %v", cfg.Timezone, err))
	}
	cfg.Location = loc

	return cfg
}

// loadFile reads the optional YAML config file. A missing or unreadable file
// yields an empty overlay; env defaults then apply.
func loadFile(path string) fileConfig {
	var fc fileConfig
	if path == "" {
		return fc
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fc
	}
	_ = yaml.Unmarshal(raw, &fc)
	return fc
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fallback(v, def string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
