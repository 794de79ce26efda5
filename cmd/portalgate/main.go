// Package main is the entry point for portalgate.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/vyrodovalexey/portalgate/internal/config"
	"github.com/vyrodovalexey/portalgate/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags. The *Set fields record whether the
// value came from the command line or environment rather than the default.
type cliFlags struct {
	configPath   string
	logLevel     string
	logFormat    string
	showVersion  bool
	logLevelSet  bool
	logFormatSet bool
}

func main() {
	flags := parseFlags(flag.CommandLine, os.Args[1:])

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg, err := loadAndValidateConfig(flags.configPath, logger)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	logger = applyLogConfig(logger, flags, cfg.Spec.Observability.Logging)

	app, err := initApplication(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", observability.Error(err))
	}

	if err := runGateway(app, logger); err != nil {
		logger.Fatal("gateway failed", observability.Error(err))
	}
}

// parseFlags parses command line flags. Environment variables supply the
// defaults.
func parseFlags(fs *flag.FlagSet, args []string) cliFlags {
	configPath := fs.String("config", getEnvOrDefault("GATEWAY_CONFIG_PATH", "configs/portalgate.yaml"),
		"Path to configuration file")
	logLevel := fs.String("log-level", getEnvOrDefault("GATEWAY_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", getEnvOrDefault("GATEWAY_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := fs.Bool("version", false, "Show version information")
	_ = fs.Parse(args)

	flags := cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
	flags.logLevelSet = os.Getenv("GATEWAY_LOG_LEVEL") != ""
	flags.logFormatSet = os.Getenv("GATEWAY_LOG_FORMAT") != ""
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			flags.logLevelSet = true
		case "log-format":
			flags.logFormatSet = true
		}
	})

	return flags
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("portalgate version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// resolveLogConfig merges the logging section of the configuration file
// under the command line flags.
func resolveLogConfig(flags cliFlags, lc *config.LoggingConfig) observability.LogConfig {
	out := observability.DefaultLogConfig()
	out.Level = flags.logLevel
	out.Format = flags.logFormat

	if lc == nil {
		return out
	}
	if !flags.logLevelSet && lc.Level != "" {
		out.Level = lc.Level
	}
	if !flags.logFormatSet && lc.Format != "" {
		out.Format = lc.Format
	}
	if lc.Output != "" {
		out.Output = lc.Output
	}
	return out
}

// applyLogConfig rebuilds the logger when the configuration file changes
// its settings. On failure the current logger is kept.
func applyLogConfig(
	current observability.Logger,
	flags cliFlags,
	lc *config.LoggingConfig,
) observability.Logger {
	want := resolveLogConfig(flags, lc)
	if want == resolveLogConfig(flags, nil) {
		return current
	}

	logger, err := observability.NewLogger(want)
	if err != nil {
		current.Warn("ignoring logging configuration",
			observability.String("level", want.Level),
			observability.String("format", want.Format),
			observability.String("output", want.Output),
			observability.Error(err),
		)
		return current
	}

	_ = current.Sync()
	observability.SetGlobalLogger(logger)
	return logger
}

// loadAndValidateConfig loads the configuration, logs its warnings and
// rejects it only on hard errors.
func loadAndValidateConfig(configPath string, logger observability.Logger) (*config.GatewayConfig, error) {
	logger.Info("starting portalgate",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	path, err := config.ResolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	warnings, err := config.ValidateConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	for _, w := range warnings {
		logger.Warn("configuration warning",
			observability.String("path", w.Path),
			observability.String("message", w.Message),
		)
	}

	logger.Info("configuration loaded",
		observability.String("name", cfg.Metadata.Name),
		observability.String("listen", cfg.Spec.Listener.Address()),
		observability.String("upstream", cfg.Spec.Upstream.URL),
		observability.String("signature_header", cfg.Spec.Gate.SignatureHeader()),
		observability.Bool("portal_agent_configured", cfg.Spec.Gate.PortalCGIAgentHeader != ""),
		observability.Bool("salt_key_configured", cfg.Spec.Gate.SaltKey != ""),
	)

	return cfg, nil
}
