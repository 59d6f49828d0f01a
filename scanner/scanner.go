// Package scanner coordinates a full detection run: enumerate media
// files, skip what the cache already cleared, analyze the rest in
// parallel, and organize matches into confidence tiers.
package scanner

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"

	"github.com/TegranGrigorian/tiktok-cleaner/cache"
	"github.com/TegranGrigorian/tiktok-cleaner/config"
	"github.com/TegranGrigorian/tiktok-cleaner/evidence"
	"github.com/TegranGrigorian/tiktok-cleaner/logger"
	"github.com/TegranGrigorian/tiktok-cleaner/output"
	"github.com/TegranGrigorian/tiktok-cleaner/scoring"
	"github.com/TegranGrigorian/tiktok-cleaner/utils"
)

// organizeThreshold is the minimum score that sends a file into a tier
// folder; anything below it is recorded in the cache instead.
const organizeThreshold = 20

type Summary struct {
	TotalFiles   int
	Skipped      int
	Analyzed     int
	Confirmed    int
	Likely       int
	Possible     int
	Unlikely     int
	Organized    int
	Errors       int
	Duration     time.Duration
	BaseDir      string
	CacheEntries int
}

type analysis struct {
	task   fileTask
	bundle *evidence.Bundle
	result *scoring.Result
	err    error
}

// Run executes one scan over cfg.ScanPath. Results are written to the
// report writer as they are finalized; the returned summary covers the
// whole run.
func Run(ctx context.Context, cfg *config.Config, metrics *output.Metrics, w *output.Writer) (*Summary, error) {
	start := time.Now()

	layout := ResolveLayout(cfg.ScanPath)
	store := cache.Load(layout.CachePath)
	if last := store.LastUpdated(); !last.IsZero() {
		logger.Infof("Organization folder: %s (%d cached entries, last scan %s)",
			layout.BaseDir, store.Len(), last.Format(time.RFC3339))
	} else {
		logger.Infof("Organization folder: %s (no previous scan cache)", layout.BaseDir)
	}

	matcher := utils.NewPatternMatcher(cfg.IncludePatterns, cfg.ExcludePatterns)

	var ioLimiter *rate.Limiter
	if cfg.MaxIOPerSecond > 0 {
		ioLimiter = rate.NewLimiter(rate.Limit(cfg.MaxIOPerSecond), cfg.MaxIOPerSecond)
	}

	logger.Info("Enumerating media files...")
	tasks, err := collectMediaFiles(ctx, cfg.ScanPath, matcher, layout.BaseDir, ioLimiter)
	if err != nil {
		return nil, err
	}
	logger.Infof("Found %d media files", len(tasks))

	summary := &Summary{
		TotalFiles: len(tasks),
		BaseDir:    layout.BaseDir,
	}
	if metrics != nil {
		metrics.FilesEnumerated = len(tasks)
	}

	pending := make([]fileTask, 0, len(tasks))
	for _, task := range tasks {
		if store.ShouldSkip(task.path, task.info.Size(), task.info.ModTime()) {
			summary.Skipped++
			continue
		}
		pending = append(pending, task)
	}
	if summary.Skipped > 0 {
		logger.Infof("Skipping %d unchanged files from cache", summary.Skipped)
	}
	if metrics != nil {
		metrics.FilesSkipped = summary.Skipped
	}

	results := analyzeParallel(ctx, cfg, pending)

	organizer := NewOrganizer(layout, cfg.ApplyChanges)
	runErr := ctx.Err()
	for _, a := range results {
		if a.err != nil {
			logger.Warnf("Failed to analyze %s: %v", a.task.path, a.err)
			summary.Errors++
			continue
		}
		summary.Analyzed++

		rec := buildRecord(a)
		switch a.result.Verdict {
		case scoring.VerdictConfirmed:
			summary.Confirmed++
		case scoring.VerdictLikely:
			summary.Likely++
		case scoring.VerdictPossible:
			summary.Possible++
		default:
			summary.Unlikely++
		}

		if a.result.Score >= organizeThreshold {
			dest, action, placeErr := organizer.Place(a.task.path, a.result.Score, a.result.Verdict)
			if placeErr != nil {
				logger.Warnf("Could not organize %s: %v", a.task.path, placeErr)
				summary.Errors++
			} else {
				summary.Organized++
				rec.Destination = dest
				rec.Action = action
				if action == ActionMoved {
					store.Forget(a.task.path)
				}
			}
		} else {
			store.Record(a.task.path, a.task.info.Size(), a.task.info.ModTime(),
				a.result.Score, a.result.IsMatch)
		}

		if w != nil {
			w.WriteRecord(rec)
		}
	}

	if err := store.Save(); err != nil {
		logger.Warnf("Could not save cache to %s: %v", layout.CachePath, err)
	}
	summary.CacheEntries = store.Len()
	summary.Duration = time.Since(start)

	if metrics != nil {
		metrics.FilesAnalyzed = summary.Analyzed
		metrics.FilesOrganized = summary.Organized
		metrics.Errors = summary.Errors
	}
	return summary, runErr
}

// analyzeParallel fans pending tasks out to a worker pool and returns
// one analysis per task, in enumeration order.
func analyzeParallel(ctx context.Context, cfg *config.Config, pending []fileTask) []analysis {
	extractor := evidence.NewExtractor(cfg.HeadReadMode, cfg.HeadMaxBytes, cfg.MmapMinSize)
	engine := scoring.NewEngine()

	bar := progressbar.NewOptions(len(pending),
		progressbar.OptionSetDescription("Analyzing media"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetVisibility(progressVisible()),
		progressbar.OptionFullWidth(),
	)

	progressCh := make(chan int, maxInt(cfg.ConcurrencyLevel*4, 64))
	var progressWG sync.WaitGroup
	progressWG.Add(1)
	go func() {
		defer progressWG.Done()
		for delta := range progressCh {
			_ = bar.Add(delta)
		}
	}()

	type indexedTask struct {
		index int
		task  fileTask
	}
	tasksChan := make(chan indexedTask, cfg.ConcurrencyLevel)
	go func() {
		defer close(tasksChan)
		for i, task := range pending {
			select {
			case <-ctx.Done():
				return
			case tasksChan <- indexedTask{index: i, task: task}:
			}
		}
	}()

	results := make([]analysis, len(pending))
	var wg sync.WaitGroup
	for range cfg.ConcurrencyLevel {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range tasksChan {
				select {
				case <-ctx.Done():
					results[it.index] = analysis{task: it.task, err: ctx.Err()}
					progressCh <- 1
					continue
				default:
				}
				a := analysis{task: it.task}
				a.bundle, a.err = extractor.Extract(it.task.path)
				if a.err == nil {
					a.result = engine.Evaluate(a.bundle)
				}
				results[it.index] = a
				progressCh <- 1
			}
		}()
	}

	wg.Wait()
	close(progressCh)
	progressWG.Wait()
	fmt.Println()
	return results
}

func buildRecord(a analysis) *output.Record {
	rec := &output.Record{
		Path:       a.bundle.Path,
		Filename:   a.bundle.Filename,
		SizeBytes:  a.bundle.SizeBytes,
		SizeHuman:  a.bundle.SizeHuman,
		Modified:   a.bundle.Modified.Format(time.RFC3339),
		Width:      a.bundle.Width,
		Height:     a.bundle.Height,
		Format:     a.bundle.Format,
		Kind:       string(a.result.Kind),
		Score:      a.result.Score,
		Verdict:    string(a.result.Verdict),
		IsMatch:    a.result.IsMatch,
		Evidence:   a.result.Evidence,
		Indicators: a.result.Indicators,
	}
	if a.bundle.HasCreated {
		rec.Created = a.bundle.Created.Format(time.RFC3339)
	}
	return rec
}

// PrintSummary writes the human-readable run report to stdout.
func PrintSummary(s *Summary) {
	fmt.Println()
	fmt.Println("TikTok Detection Summary")
	fmt.Println("========================")
	fmt.Printf("Total media files:  %d\n", s.TotalFiles)
	fmt.Printf("Skipped (cached):   %d\n", s.Skipped)
	fmt.Printf("Analyzed:           %d\n", s.Analyzed)
	fmt.Printf("  Confirmed TikTok: %d\n", s.Confirmed)
	fmt.Printf("  Likely TikTok:    %d\n", s.Likely)
	fmt.Printf("  Possible TikTok:  %d\n", s.Possible)
	fmt.Printf("  Unlikely:         %d\n", s.Unlikely)
	fmt.Printf("Organized:          %d -> %s\n", s.Organized, s.BaseDir)
	if s.Errors > 0 {
		fmt.Printf("Errors:             %d\n", s.Errors)
	}
	if s.Analyzed > 0 {
		rate := float64(s.Confirmed+s.Likely) / float64(s.Analyzed) * 100.0
		fmt.Printf("Detection rate:     %.1f%%\n", rate)
	}
	fmt.Printf("Duration:           %s\n", s.Duration.Round(time.Millisecond))
}

func progressVisible() bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv("TIKTOK_CLEANER_DISABLE_PROGRESS")))
	return value != "1" && value != "true" && value != "yes" && value != "on"
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
