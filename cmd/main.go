package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TegranGrigorian/tiktok-cleaner/config"
	"github.com/TegranGrigorian/tiktok-cleaner/experiment"
	"github.com/TegranGrigorian/tiktok-cleaner/logger"
	"github.com/TegranGrigorian/tiktok-cleaner/output"
	"github.com/TegranGrigorian/tiktok-cleaner/scanner"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Experiment {
		results, err := experiment.Run(ctx, cfg)
		if err != nil {
			logger.Fatalf("Experiment failed: %v", err)
		}
		experiment.PrintResults(results)
		return
	}

	if cfg.ApplyChanges {
		logger.Info("Apply mode: detected files will be moved into tier folders.")
	} else {
		logger.Info("Preview mode: detected files will be copied; originals stay put.")
	}

	startTime := time.Now()
	metrics := output.Metrics{
		StartTime: startTime.Format(time.RFC3339),
	}

	writer, err := output.New(cfg, &metrics)
	if err != nil {
		logger.Fatalf("Failed to initialize output: %v", err)
	}
	defer writer.Close()

	go handleSignals(cancel, &metrics, writer)

	summary, err := scanner.Run(ctx, cfg, &metrics, writer)
	if err != nil {
		logger.Fatalf("Scan failed: %v", err)
	}

	metrics.EndTime = time.Now().Format(time.RFC3339)
	writer.SetMetrics(metrics)

	scanner.PrintSummary(summary)
	logger.Info("Scan completed successfully.")
}

func handleSignals(cancelFunc context.CancelFunc, metrics *output.Metrics, w *output.Writer) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("Interrupt signal received. Shutting down...")

	metrics.EndTime = time.Now().Format(time.RFC3339)
	w.SetMetrics(*metrics)
	cancelFunc()
}
