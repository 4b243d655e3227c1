package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/KevoDB/blockpack/pkg/common/log"
	"github.com/KevoDB/blockpack/pkg/config"
	"github.com/KevoDB/blockpack/pkg/telemetry"
)

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "sstctl - build and inspect block-packed SSTables\n\n")
	fmt.Fprintf(out, "Usage:\n")
	fmt.Fprintf(out, "  sstctl [options] [file.sst]           - Interactive inspector\n")
	fmt.Fprintf(out, "  sstctl [options] pack -in F -out F.sst - Pack sorted key<TAB>value lines\n\n")
	fmt.Fprintf(out, "Options:\n")
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "", "Path to a JSON config file")
	dataDir := flag.String("data", ".", "Data directory used for config defaults")
	logLevel := flag.String("log-level", "", "Override the configured log level")
	enableTelemetry := flag.Bool("telemetry", false, "Export OpenTelemetry metrics and spans to stderr")
	flag.Usage = usage
	flag.Parse()

	cfg, err := loadConfig(*configPath, *dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %s\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Update(func(c *config.Config) { c.LogLevel = *logLevel })
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
	}

	logger := log.NewStandardLogger(log.WithLevel(cfg.Level()))
	log.SetDefaultLogger(logger)

	telCfg := telemetry.DefaultConfig()
	telCfg.LoadFromEnv()
	if *enableTelemetry {
		telCfg.Enabled = true
	}
	tel, err := telemetry.New(telCfg, os.Stderr)
	if err != nil {
		logger.Fatal("failed to initialize telemetry: %v", err)
	}

	err = run(flag.Args(), cfg, logger, tel)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := tel.Shutdown(ctx); shutdownErr != nil {
		logger.Warn("telemetry shutdown: %v", shutdownErr)
	}
	if err != nil {
		logger.Fatal("%v", err)
	}
}

func run(args []string, cfg *config.Config, logger log.Logger, tel telemetry.Telemetry) error {
	if len(args) > 0 && args[0] == "pack" {
		if err := runPack(args[1:], cfg, logger, tel); err != nil {
			return fmt.Errorf("pack failed: %w", err)
		}
		return nil
	}

	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	return runInteractive(path, logger, tel)
}

func loadConfig(path, dataDir string) (*config.Config, error) {
	if path == "" {
		return config.NewDefaultConfig(dataDir), nil
	}
	return config.Load(path, dataDir)
}
