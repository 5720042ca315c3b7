package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"pricewatch/config"
	"pricewatch/scraper"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	noBrowser := flag.Bool("no-browser", false, "Skip the headless browser tier")
	noProxy := flag.Bool("no-proxy", false, "Skip the text-render proxy tier")
	verbose := flag.Bool("v", false, "Log every tier at debug level")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <product-url>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if *noBrowser {
		cfg.Scraper.BrowserEnabled = false
	}
	if *noProxy {
		cfg.Scraper.ProxyEnabled = false
	}

	logger := config.NewLogger(cfg.Log)
	// stdout carries the result
	logger.SetOutput(os.Stderr)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	extractor := scraper.NewExtractor(scraper.NewTiers(cfg.Scraper, cfg.Etsy, logger), logger)

	result, err := extractor.Extract(ctx, flag.Arg(0))
	if err != nil {
		logger.WithError(err).Error("❌ Extraction failed")
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		logger.Fatalf("Failed to write result: %v", err)
	}
}
