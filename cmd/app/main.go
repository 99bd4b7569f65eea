package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"ChartSignal/internal/di"
	"ChartSignal/pkg/config"
)

func main() {
	var (
		path        = flag.String("config", "config/config.yaml", "path to the YAML config")
		showVersion = flag.Bool("version", false, "print the configured version and exit")
	)
	flag.Parse()

	cfg, err := config.LoadWithEnv(*path)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *showVersion {
		fmt.Println(cfg.Version)
		return
	}

	if err := run(cfg); err != nil {
		log.Printf("chartsignal: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log.Printf("starting env=%s version=%s db=%s", cfg.Environment, cfg.Version, cfg.Storage.SQLitePath)
	if cfg.Kafka.Enabled {
		log.Printf("kafka brokers=%v requests=%s results=%s", cfg.Kafka.Brokers, cfg.Kafka.Topics.Requests, cfg.Kafka.Topics.Results)
	}
	if cfg.AnalyticsSink.Enabled {
		log.Printf("analytics sink clickhouse db=%s", cfg.AnalyticsSink.ClickHouse.Database)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("wire app: %w", err)
	}
	// Blocks until SIGINT or SIGTERM.
	return app.Run()
}
