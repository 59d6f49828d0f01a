// Package experiment measures detection quality against labeled
// sample sets: one folder of known TikTok files, one of known
// non-TikTok files.
package experiment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/TegranGrigorian/tiktok-cleaner/config"
	"github.com/TegranGrigorian/tiktok-cleaner/evidence"
	"github.com/TegranGrigorian/tiktok-cleaner/logger"
	"github.com/TegranGrigorian/tiktok-cleaner/scoring"
)

type FolderStats struct {
	Folder    string
	Total     int
	Confirmed int
	Likely    int
	Possible  int
	Unlikely  int
	Matched   int
	Errors    int
}

type Results struct {
	Positive FolderStats
	Negative FolderStats
}

// Sensitivity is the share of known TikTok files that were detected.
func (r *Results) Sensitivity() float64 {
	if r.Positive.Total == 0 {
		return 0
	}
	return float64(r.Positive.Matched) / float64(r.Positive.Total) * 100.0
}

// Specificity is the share of known non-TikTok files that were
// correctly left alone.
func (r *Results) Specificity() float64 {
	if r.Negative.Total == 0 {
		return 0
	}
	return float64(r.Negative.Total-r.Negative.Matched) / float64(r.Negative.Total) * 100.0
}

// Run analyzes both labeled folders with the production extractor and
// scoring engine. Nothing is moved or cached; this is measurement only.
func Run(ctx context.Context, cfg *config.Config) (*Results, error) {
	extractor := evidence.NewExtractor(cfg.HeadReadMode, cfg.HeadMaxBytes, cfg.MmapMinSize)
	engine := scoring.NewEngine()

	positive, err := analyzeFolder(ctx, cfg.PositiveSet, extractor, engine)
	if err != nil {
		return nil, fmt.Errorf("positive set: %w", err)
	}
	negative, err := analyzeFolder(ctx, cfg.NegativeSet, extractor, engine)
	if err != nil {
		return nil, fmt.Errorf("negative set: %w", err)
	}
	return &Results{Positive: *positive, Negative: *negative}, nil
}

func analyzeFolder(
	ctx context.Context,
	folder string,
	extractor *evidence.Extractor,
	engine *scoring.Engine,
) (*FolderStats, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	stats := &FolderStats{Folder: folder}
	for _, name := range names {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		path := filepath.Join(folder, name)
		bundle, err := extractor.Extract(path)
		if err != nil {
			logger.Warnf("Failed to analyze %s: %v", path, err)
			stats.Errors++
			continue
		}
		result := engine.Evaluate(bundle)
		stats.Total++
		if result.IsMatch {
			stats.Matched++
		}
		switch result.Verdict {
		case scoring.VerdictConfirmed:
			stats.Confirmed++
		case scoring.VerdictLikely:
			stats.Likely++
		case scoring.VerdictPossible:
			stats.Possible++
		default:
			stats.Unlikely++
		}
	}
	return stats, nil
}

// PrintResults writes the experiment report to stdout.
func PrintResults(r *Results) {
	fmt.Println()
	fmt.Println("TikTok Detection Experiment")
	fmt.Println("===========================")
	printFolder("Known TikTok", &r.Positive)
	printFolder("Known non-TikTok", &r.Negative)
	fmt.Println("Performance")
	fmt.Println("-----------")
	fmt.Printf("Sensitivity: %.1f%% (%d/%d detected in TikTok set)\n",
		r.Sensitivity(), r.Positive.Matched, r.Positive.Total)
	fmt.Printf("Specificity: %.1f%% (%d/%d correctly cleared in non-TikTok set)\n",
		r.Specificity(), r.Negative.Total-r.Negative.Matched, r.Negative.Total)
}

func printFolder(label string, s *FolderStats) {
	fmt.Printf("%s (%s):\n", label, s.Folder)
	fmt.Printf("  Total:     %d\n", s.Total)
	fmt.Printf("  Confirmed: %d\n", s.Confirmed)
	fmt.Printf("  Likely:    %d\n", s.Likely)
	fmt.Printf("  Possible:  %d\n", s.Possible)
	fmt.Printf("  Unlikely:  %d\n", s.Unlikely)
	if s.Errors > 0 {
		fmt.Printf("  Errors:    %d\n", s.Errors)
	}
	fmt.Println()
}
