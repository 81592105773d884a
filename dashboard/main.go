package main

import (
	"flag"
	"log"
	"time"

	"tailview/common"
)

func main() {
	configPath := flag.String("config", defaultConfigPath(), "path to YAML config")
	binary := flag.String("bin", "", "VPN tool binary (overrides config)")
	interval := flag.Duration("interval", 0, "refresh interval, e.g. 10s (overrides config)")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *binary != "" {
		cfg.binary = *binary
	}
	if *interval > 0 {
		cfg.refresh = common.ClampDuration(*interval, 2*time.Second, 10*time.Minute)
	}
	if *verbose || cfg.verbose {
		common.EnableVerbose()
	}

	client := newClient(cfg, nil)
	ui := newDashboardUI(client)
	if err := ui.run(cfg.refresh); err != nil {
		log.Fatalf("ui error: %v", err)
	}
}
