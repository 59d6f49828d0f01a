package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/TegranGrigorian/tiktok-cleaner/version"
)

type Config struct {
	ScanPath         string            `json:"scan_path"`
	ApplyChanges     bool              `json:"apply_changes"`
	Experiment       bool              `json:"experiment"`
	PositiveSet      string            `json:"positive_set"`
	NegativeSet      string            `json:"negative_set"`
	ConcurrencyLevel int               `json:"concurrency_level"`
	MaxIOPerSecond   int               `json:"max_io_per_second"`
	IncludePatterns  []string          `json:"include_patterns"`
	ExcludePatterns  []string          `json:"exclude_patterns"`
	LogLevel         string            `json:"log_level"`
	ConfigFile       string            `json:"config_file"`
	ReportFile       string            `json:"report_file"`
	HeadReadMode     string            `json:"head_read_mode"`
	HeadMaxBytes     int64             `json:"head_max_bytes"`
	MmapMinSize      int64             `json:"mmap_min_size"`
	OtelEndpoint     string            `json:"otel_endpoint"`
	OtelHeaders      map[string]string `json:"otel_headers"`
	OtelServiceName  string            `json:"otel_service_name"`
	OtelTimeout      time.Duration     `json:"otel_timeout"`
	ConcurrencySet   bool              `json:"-"`
}

func LoadConfig() (*Config, error) {
	now := time.Now().UTC()
	timestamp := now.Format("20060102-150405")
	cfg := &Config{
		ConcurrencyLevel: runtime.NumCPU(),
		MaxIOPerSecond:   0,
		IncludePatterns:  []string{},
		ExcludePatterns:  []string{},
		LogLevel:         "info",
		ReportFile:       fmt.Sprintf("tiktok-cleaner-%s.json", timestamp),
		HeadReadMode:     "auto",
		HeadMaxBytes:     1 * 1024 * 1024,
		MmapMinSize:      128 * 1024,
		OtelHeaders:      map[string]string{},
		OtelServiceName:  "tiktok-cleaner",
		OtelTimeout:      5 * time.Second,
	}

	scanPath := flag.String("path", "", "Folder to scan for TikTok media (e.g. a phone DCIM folder).")
	apply := flag.Bool("apply", cfg.ApplyChanges, fmt.Sprintf("Move detected files into tier folders instead of preview copies (default: %t).", cfg.ApplyChanges))
	experiment := flag.Bool("experiment", cfg.Experiment, "Run the detection experiment on labeled sample sets instead of a scan.")
	positiveSet := flag.String("positive-set", cfg.PositiveSet, "Directory of known TikTok files for --experiment.")
	negativeSet := flag.String("negative-set", cfg.NegativeSet, "Directory of known non-TikTok files for --experiment.")
	concurrency := flag.Int("concurrency", cfg.ConcurrencyLevel, fmt.Sprintf("Concurrency level for the analysis phase (default: %d).", cfg.ConcurrencyLevel))
	maxIO := flag.Int("max-io-per-second", cfg.MaxIOPerSecond, "Maximum enumeration operations per second (default: 0 for unlimited).")
	includes := flag.String("include", "", "Comma-separated list of include patterns (default: none).")
	excludes := flag.String("exclude", "", "Comma-separated list of exclude patterns (default: none).")
	logLevel := flag.String("log-level", cfg.LogLevel, fmt.Sprintf("Log level: debug, info, warn, error, fatal, or panic (default: %s).", cfg.LogLevel))
	configFile := flag.String("config", "", "Path to JSON configuration file (default: none).")
	report := flag.String("report", cfg.ReportFile, "Results report file, empty to disable (default: tiktok-cleaner-<timestamp>.json).")
	headReadMode := flag.String("head-read-mode", cfg.HeadReadMode, "File head read mode: auto, stream, or mmap (default: auto).")
	headMaxBytes := flag.Int64("head-max-bytes", cfg.HeadMaxBytes, fmt.Sprintf("Maximum bytes of each file head scanned for indicator strings (default: %d).", cfg.HeadMaxBytes))
	mmapMinSize := flag.Int64("mmap-min-size", cfg.MmapMinSize, "Minimum file size in bytes for the mmap head read path (default: 131072).")
	otelEndpoint := flag.String("otel-endpoint", cfg.OtelEndpoint, "OTLP/HTTP logs endpoint for detection records (default: none).")
	otelHeaders := flag.String("otel-headers", "", "Comma-separated OTEL headers (key=value) for export (default: none).")
	otelServiceName := flag.String("otel-service-name", cfg.OtelServiceName, "OTEL service name for export (default: tiktok-cleaner).")
	otelTimeout := flag.Duration("otel-timeout", cfg.OtelTimeout, "OTEL export timeout (default: 5s).")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = displayHelp
	flag.Parse()

	if *showVersion {
		fmt.Printf("tiktok-cleaner version %s\n", version.Version)
		os.Exit(0)
	}

	if *configFile != "" {
		cfg.ConfigFile = *configFile
		if err := cfg.loadFromFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "path":
			cfg.ScanPath = *scanPath
		case "apply":
			cfg.ApplyChanges = *apply
		case "experiment":
			cfg.Experiment = *experiment
		case "positive-set":
			cfg.PositiveSet = *positiveSet
		case "negative-set":
			cfg.NegativeSet = *negativeSet
		case "concurrency":
			cfg.ConcurrencyLevel = *concurrency
			cfg.ConcurrencySet = true
		case "max-io-per-second":
			cfg.MaxIOPerSecond = *maxIO
		case "include":
			cfg.IncludePatterns = parseCommaSeparated(*includes)
		case "exclude":
			cfg.ExcludePatterns = parseCommaSeparated(*excludes)
		case "log-level":
			cfg.LogLevel = *logLevel
		case "report":
			cfg.ReportFile = *report
		case "head-read-mode":
			cfg.HeadReadMode = strings.ToLower(strings.TrimSpace(*headReadMode))
		case "head-max-bytes":
			cfg.HeadMaxBytes = *headMaxBytes
		case "mmap-min-size":
			cfg.MmapMinSize = *mmapMinSize
		case "otel-endpoint":
			cfg.OtelEndpoint = strings.TrimSpace(*otelEndpoint)
		case "otel-headers":
			cfg.OtelHeaders = parseHeaders(*otelHeaders)
		case "otel-service-name":
			cfg.OtelServiceName = strings.TrimSpace(*otelServiceName)
		case "otel-timeout":
			cfg.OtelTimeout = *otelTimeout
		}
	})

	cfg.HeadReadMode = strings.ToLower(strings.TrimSpace(cfg.HeadReadMode))
	if cfg.HeadReadMode == "" {
		cfg.HeadReadMode = "auto"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func displayHelp() {
	fmt.Println("tiktok-cleaner - TikTok Detection and Organization Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  tiktok-cleaner [options]")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  tiktok-cleaner --path \"/run/user/1000/gvfs/mtp:host=PHONE/Internal storage/DCIM\"")
	fmt.Println("  tiktok-cleaner --path ~/Pictures --apply")
	fmt.Println("  tiktok-cleaner --experiment --positive-set testsets/tiktok --negative-set testsets/not_tiktok")
}

func (cfg *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read config file: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid config file format: %v", err)
	}
	if _, ok := raw["concurrency_level"]; ok {
		cfg.ConcurrencySet = true
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid config file format: %v", err)
	}
	return nil
}

func (cfg *Config) validate() error {
	if cfg.Experiment {
		if cfg.PositiveSet == "" || cfg.NegativeSet == "" {
			return fmt.Errorf("--experiment requires both --positive-set and --negative-set")
		}
	} else if cfg.ScanPath == "" {
		return fmt.Errorf("a scan path must be specified with --path (or use --experiment)")
	}
	if cfg.ScanPath != "" {
		// Cache keys derive from the scan root; an absolute root keeps
		// them stable across working directories.
		abs, err := filepath.Abs(cfg.ScanPath)
		if err != nil {
			return fmt.Errorf("could not resolve scan path %s: %w", cfg.ScanPath, err)
		}
		cfg.ScanPath = abs
	}
	if cfg.ConcurrencyLevel <= 0 {
		return fmt.Errorf("concurrency level must be positive")
	}
	if cfg.MaxIOPerSecond < 0 {
		return fmt.Errorf("max-io-per-second must be zero or positive")
	}
	if cfg.HeadMaxBytes <= 0 {
		return fmt.Errorf("head-max-bytes must be positive")
	}
	if cfg.MmapMinSize < 0 {
		return fmt.Errorf("mmap-min-size must be zero or positive")
	}
	if cfg.HeadReadMode != "auto" && cfg.HeadReadMode != "stream" && cfg.HeadReadMode != "mmap" {
		return fmt.Errorf("invalid head-read-mode value: %s", cfg.HeadReadMode)
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" &&
		cfg.LogLevel != "error" && cfg.LogLevel != "fatal" && cfg.LogLevel != "panic" {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if cfg.OtelTimeout < 0 {
		return fmt.Errorf("otel-timeout must be zero or positive")
	}
	if cfg.OtelEndpoint != "" {
		if !strings.HasPrefix(cfg.OtelEndpoint, "http://") && !strings.HasPrefix(cfg.OtelEndpoint, "https://") {
			return fmt.Errorf("otel-endpoint must include scheme (http or https)")
		}
	}
	return nil
}

func parseCommaSeparated(input string) []string {
	if input == "" {
		return []string{}
	}
	items := strings.Split(input, ",")
	for i, item := range items {
		items[i] = strings.TrimSpace(item)
	}
	return items
}

func parseHeaders(input string) map[string]string {
	headers := make(map[string]string)
	if input == "" {
		return headers
	}
	for _, item := range strings.Split(input, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(parts[1])
	}
	return headers
}
