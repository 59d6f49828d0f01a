// Package evidence pulls everything the scorer needs out of a media
// file in a single pass: identity, size, pixel dimensions, the true
// container format, and any indicator strings found in the file head.
package evidence

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/djherbis/times"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/TegranGrigorian/tiktok-cleaner/hasher"
	"github.com/TegranGrigorian/tiktok-cleaner/logger"
	"github.com/TegranGrigorian/tiktok-cleaner/utils"
)

const (
	defaultHeadMaxBytes = 1 * 1024 * 1024
	defaultMmapMinSize  = 128 * 1024

	signatureSampleSize = 261
	minStringRunLength  = 4
	maxRetainedStrings  = 64
)

// Bundle is everything extracted from one file. Optional facts carry a
// Has flag so a failed probe is distinguishable from a zero value.
type Bundle struct {
	Path          string
	Filename      string
	SizeBytes     int64
	SizeHuman     string
	Modified      time.Time
	Created       time.Time
	HasCreated    bool
	Width         int
	Height        int
	HasDimensions bool
	AspectRatio   float64
	HasAspect     bool
	Format        string
	Strings       []string
	Digest        string
}

type Extractor struct {
	HeadMode     string
	HeadMaxBytes int64
	MmapMinSize  int64

	vocab *vocabMatcher
}

func NewExtractor(headMode string, headMaxBytes, mmapMinSize int64) *Extractor {
	if headMaxBytes <= 0 {
		headMaxBytes = defaultHeadMaxBytes
	}
	if mmapMinSize <= 0 {
		mmapMinSize = defaultMmapMinSize
	}
	return &Extractor{
		HeadMode:     headMode,
		HeadMaxBytes: headMaxBytes,
		MmapMinSize:  mmapMinSize,
		vocab:        newVocabMatcher(vocabulary),
	}
}

// Extract gathers evidence for a single file. Probe failures degrade to
// absent fields instead of errors; only an unreadable file fails.
func (e *Extractor) Extract(path string) (*Bundle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{
		Path:      path,
		Filename:  filepath.Base(path),
		SizeBytes: info.Size(),
		SizeHuman: utils.HumanBytes(info.Size()),
		Modified:  info.ModTime(),
	}

	ts := times.Get(info)
	if ts.HasBirthTime() {
		bundle.Created = ts.BirthTime()
		bundle.HasCreated = true
	}

	head, err := readHead(path, e.HeadMaxBytes, e.HeadMode, e.MmapMinSize)
	if err != nil {
		return nil, err
	}
	bundle.Digest = hasher.SumBytes(head)
	bundle.Format = detectFormat(head, path)

	if w, h, ok := probeDimensions(head); ok {
		bundle.Width = w
		bundle.Height = h
		bundle.HasDimensions = true
		if h > 0 {
			bundle.AspectRatio = float64(w) / float64(h)
			bundle.HasAspect = true
		}
	}

	bundle.Strings = e.extractStrings(head)
	if cameraStrings := probeCameraMetadata(head); len(cameraStrings) > 0 {
		bundle.Strings = append(bundle.Strings, cameraStrings...)
	}

	logger.Debugf("Extracted evidence for %s: format=%s dims=%dx%d strings=%d",
		bundle.Filename, bundle.Format, bundle.Width, bundle.Height, len(bundle.Strings))
	return bundle, nil
}

// detectFormat trusts the magic bytes over the extension. A WebP saved
// with a .png name reports WEBP here, which is itself an indicator.
func detectFormat(head []byte, path string) string {
	sample := head
	if len(sample) > signatureSampleSize {
		sample = sample[:signatureSampleSize]
	}
	if kind, err := filetype.Match(sample); err == nil && kind != filetype.Unknown {
		return strings.ToUpper(kind.Extension)
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(ext)
}

func probeDimensions(head []byte) (int, int, bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(head))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

// extractStrings walks the head for printable ASCII runs and keeps the
// ones containing a vocabulary term. Everything else in a media file is
// noise, so the gate keeps bundles small and scoring cheap.
func (e *Extractor) extractStrings(head []byte) []string {
	var kept []string
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		run := head[start:end]
		start = -1
		if len(run) < minStringRunLength || len(kept) >= maxRetainedStrings {
			return
		}
		lower := bytes.ToLower(run)
		if e.vocab.anyMatch(lower) {
			kept = append(kept, string(run))
		}
	}
	for i, b := range head {
		if b >= 32 && b <= 126 {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(head))
	return kept
}
