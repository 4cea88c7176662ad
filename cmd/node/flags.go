package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration for a single Node process.
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	MetricsPort     int
	ShutdownTimeout time.Duration
	Console         bool
	ShowVersion     bool
	ShowHelp        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("PROCESSORNODE_CONFIG", ""),
		"Path to the node configuration file (env: PROCESSORNODE_CONFIG)")
	flag.StringVar(&cfg.ConfigPath, "c",
		getEnv("PROCESSORNODE_CONFIG", ""),
		"Path to the node configuration file (env: PROCESSORNODE_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("PROCESSORNODE_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: PROCESSORNODE_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("PROCESSORNODE_LOG_FORMAT", "text"),
		"Log format: json, text (env: PROCESSORNODE_LOG_FORMAT)")

	flag.IntVar(&cfg.MetricsPort, "metrics-port",
		getEnvInt("PROCESSORNODE_METRICS_PORT", 9090),
		"Prometheus metrics port, 0 to disable (env: PROCESSORNODE_METRICS_PORT)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("PROCESSORNODE_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: PROCESSORNODE_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.Console, "console",
		getEnvBool("PROCESSORNODE_CONSOLE", true),
		"Read ping/readfile/shutdown/quit commands from stdin (env: PROCESSORNODE_CONSOLE)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")

	flag.Usage = printHelp
	flag.Parse()

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}
	if cfg.ConfigPath == "" {
		return fmt.Errorf("a configuration file path is required (-config or PROCESSORNODE_CONFIG)")
	}
	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		return fmt.Errorf("configuration file not found: %s", cfg.ConfigPath)
	}
	if !contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if !contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}
	return nil
}

func printHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - runs one ProcessorNode pipeline stage

Usage: %s -config <path> [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run a stage reading its configuration from a file
  %s -config configs/stage-one.cfg

  # Run with debug logging and no console command reader
  %s -config configs/stage-one.cfg -log-level=debug -console=false

Version: %s
`, os.Args[0], os.Args[0], Version)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
