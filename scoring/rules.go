// Package scoring turns an evidence bundle into a deterministic
// confidence score, verdict, and human-readable evidence trail. All
// rules are additive point awards over the extracted facts; nothing
// here touches the filesystem.
package scoring

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/TegranGrigorian/tiktok-cleaner/evidence"
)

type Kind string

const (
	KindPhoto Kind = "photo"
	KindVideo Kind = "video"
)

type Verdict string

const (
	VerdictConfirmed Verdict = "CONFIRMED"
	VerdictLikely    Verdict = "LIKELY"
	VerdictPossible  Verdict = "POSSIBLE"
	VerdictUnlikely  Verdict = "UNLIKELY"
)

const (
	thresholdConfirmed = 70
	thresholdLikely    = 40
	thresholdPossible  = 20
)

type Result struct {
	Score      int               `json:"score"`
	Verdict    Verdict           `json:"verdict"`
	IsMatch    bool              `json:"is_match"`
	Kind       Kind              `json:"kind"`
	Evidence   []string          `json:"evidence"`
	Indicators map[string]string `json:"indicators"`
}

// Dimension sets observed in TikTok exports and the phone screenshots
// that carry TikTok content.
var tiktokDimensions = [][2]int{
	{576, 1024}, {576, 1246}, {576, 1280},
	{1080, 1920}, {1080, 1800}, {1080, 2340}, {1080, 2400},
	{828, 1792}, {750, 1334}, {1125, 2436}, {1242, 2688},
	{1284, 2778}, {1170, 2532},
}

var mobileScreenshotDimensions = [][2]int{
	{1080, 1920}, {1080, 1800}, {1080, 2340}, {1080, 2400},
	{828, 1792}, {750, 1334}, {1125, 2436}, {1242, 2688},
	{1284, 2778}, {1170, 2532},
}

var tiktokVideoDimensions = [][2]int{
	{576, 1024}, {576, 1246}, {576, 1280},
	{720, 1280}, {1080, 1920},
}

var preferredVideoDimensions = [][2]int{
	{576, 1024}, {1080, 1920},
}

// Container encoder markers checked against every retained string in
// order; only the first token per string scores.
var encoderTokens = []struct {
	token  string
	points int
}{
	{"bytedance", 25},
	{"lavf58.76.100", 20},
	{"lavf", 10},
	{"mp4v", 8},
	{"isom", 8},
	{"douyin", 25},
	{"musical.ly", 8},
	{"aigc_info", 40},
	{"vid_md5", 35},
}

var brandTokens = []string{"tiktok", "douyin", "bytedance", "musically"}

// Capture metadata markers that identify a real camera photo. Matched
// case-insensitively; "iso" alone needs word boundaries so container
// brands like "isom" never trigger the exclusion.
var cameraMarkers = []string{
	"focal length", "aperture", "exposure time",
	"f-number", "shutter speed", "camera make", "camera model",
}

var isoWordPattern = regexp.MustCompile(`\biso\b`)

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true,
	".mkv": true, ".flv": true, ".webm": true,
}

// KindForPath classifies a media file by extension; anything that is
// not a known video container scores as a photo.
func KindForPath(path string) Kind {
	if videoExtensions[strings.ToLower(filepath.Ext(path))] {
		return KindVideo
	}
	return KindPhoto
}

type Engine struct {
	videoIDPattern *regexp.Regexp
}

func NewEngine() *Engine {
	return &Engine{
		videoIDPattern: regexp.MustCompile(`vid:v\d+g[fl]0000[a-f0-9]+`),
	}
}

// Evaluate scores one bundle. The same bundle always produces the same
// result: rules run in a fixed order and award fixed points.
func (e *Engine) Evaluate(b *evidence.Bundle) *Result {
	result := &Result{
		Kind:       KindForPath(b.Filename),
		Evidence:   []string{},
		Indicators: map[string]string{},
	}

	if marker, found := findCameraMarker(b.Strings); found {
		result.Evidence = append(result.Evidence,
			fmt.Sprintf("Camera photo metadata detected (%s)", marker))
		result.Indicators["camera_photo"] = "excluded"
		result.Verdict = VerdictUnlikely
		return result
	}

	e.scoreCommon(b, result)
	switch result.Kind {
	case KindVideo:
		scoreVideo(b, result)
	default:
		scorePhoto(b, result)
	}

	result.Verdict = verdictFor(result.Score)
	result.IsMatch = result.Verdict == VerdictConfirmed || result.Verdict == VerdictLikely
	return result
}

func findCameraMarker(found []string) (string, bool) {
	for _, s := range found {
		lower := strings.ToLower(s)
		for _, marker := range cameraMarkers {
			if strings.Contains(lower, marker) {
				return marker, true
			}
		}
		if isoWordPattern.MatchString(lower) {
			return "iso", true
		}
	}
	return "", false
}

func (e *Engine) scoreCommon(b *evidence.Bundle, r *Result) {
	if anyStringContains(b.Strings, "aigc_label_type") {
		r.award(40, "AIGC metadata found")
		r.Indicators["aigc_metadata"] = "detected"
	}

	for _, s := range b.Strings {
		if id := e.videoIDPattern.FindString(s); id != "" {
			r.award(35, "TikTok video ID found")
			r.Indicators["tiktok_video_id"] = id
			break
		}
	}

	if anyStringContains(b.Strings, "vid_md5") {
		r.award(30, "ByteDance content hash found")
		r.Indicators["vid_md5"] = "detected"
	}

	if b.HasDimensions {
		if dimensionsIn(b.Width, b.Height, tiktokDimensions) {
			r.award(25, fmt.Sprintf("TikTok-typical dimensions: %dx%d", b.Width, b.Height))
			r.Indicators["video_dimensions"] = fmt.Sprintf("%dx%d", b.Width, b.Height)
		}
		if b.HasAspect && b.AspectRatio >= 0.55 && b.AspectRatio <= 0.58 {
			r.award(15, "9:16 aspect ratio (TikTok standard)")
			r.Indicators["aspect_ratio"] = fmt.Sprintf("%d:%d", b.Width, b.Height)
		}
		if b.Height > b.Width {
			r.award(5, "Portrait orientation")
		}
	}

	if strings.HasSuffix(strings.ToLower(b.Filename), ".png") &&
		strings.Contains(strings.ToLower(b.Format), "webp") {
		r.award(15, "WebP format with PNG extension (TikTok app behavior)")
		r.Indicators["format_mismatch"] = "webp_as_png"
	}

	if isHashFilename(b.Filename) {
		r.award(10, "MD5-like hash filename (app-generated)")
		r.Indicators["filename_pattern"] = "md5_hash"
	}

	var branded []string
	for _, s := range b.Strings {
		lower := strings.ToLower(s)
		for _, token := range brandTokens {
			if strings.Contains(lower, token) {
				branded = append(branded, s)
				break
			}
		}
	}
	if len(branded) > 0 {
		r.award(20, "TikTok strings found in file")
		r.Indicators["string_indicators"] = strings.Join(branded, ", ")
	}
}

func scorePhoto(b *evidence.Bundle, r *Result) {
	if b.HasDimensions {
		if dimensionsIn(b.Width, b.Height, mobileScreenshotDimensions) {
			r.award(15, fmt.Sprintf("Mobile screenshot dimensions: %dx%d", b.Width, b.Height))
		}
		if b.HasAspect && b.AspectRatio >= 0.5625-0.01 && b.AspectRatio <= 0.5625+0.01 {
			r.award(10, "Perfect 9:16 aspect ratio (TikTok standard)")
		}
	}

	if len(b.Filename) == 36 && strings.Count(b.Filename, ".") == 1 &&
		strings.HasSuffix(b.Filename, ".png") {
		r.award(8, "32-character hash filename with PNG extension")
	}

	if b.SizeBytes > 500_000 && b.SizeBytes < 5_000_000 {
		r.award(5, "File size typical of mobile screenshot")
	}
}

func scoreVideo(b *evidence.Bundle, r *Result) {
	if b.HasDimensions {
		if dimensionsIn(b.Width, b.Height, tiktokVideoDimensions) {
			r.award(30, fmt.Sprintf("TikTok standard video dimensions: %dx%d", b.Width, b.Height))
		}
		if dimensionsIn(b.Width, b.Height, preferredVideoDimensions) {
			r.award(15, "Exact TikTok preferred video dimensions")
		}
		if b.Width < b.Height {
			r.award(10, "Portrait orientation (width < height)")
		}
		if b.HasAspect {
			if b.AspectRatio >= 0.55 && b.AspectRatio <= 0.58 {
				r.award(20, "Vertical mobile video format (9:16)")
			} else if b.AspectRatio < 0.8 {
				r.award(8, fmt.Sprintf("Portrait aspect ratio: %.3f", b.AspectRatio))
			}
		}
	}

	for _, s := range b.Strings {
		lower := strings.ToLower(s)
		for _, entry := range encoderTokens {
			if strings.Contains(lower, entry.token) {
				r.award(entry.points, fmt.Sprintf("TikTok-specific metadata: %s", entry.token))
				break
			}
		}
	}

	lowerName := strings.ToLower(b.Filename)
	if strings.HasPrefix(lowerName, "download") && strings.HasSuffix(lowerName, ".mp4") {
		r.award(25, "TikTok download naming pattern (Download*.mp4)")
	}

	if b.SizeBytes > 100_000 && b.SizeBytes < 50_000_000 {
		r.award(5, "File size typical of TikTok video")
	}
}

func (r *Result) award(points int, reason string) {
	r.Score += points
	r.Evidence = append(r.Evidence, reason)
}

func verdictFor(score int) Verdict {
	switch {
	case score >= thresholdConfirmed:
		return VerdictConfirmed
	case score >= thresholdLikely:
		return VerdictLikely
	case score >= thresholdPossible:
		return VerdictPossible
	default:
		return VerdictUnlikely
	}
}

func anyStringContains(found []string, substr string) bool {
	for _, s := range found {
		if strings.Contains(strings.ToLower(s), substr) {
			return true
		}
	}
	return false
}

func dimensionsIn(width, height int, set [][2]int) bool {
	for _, d := range set {
		if d[0] == width && d[1] == height {
			return true
		}
	}
	return false
}

func isHashFilename(name string) bool {
	if len(name) != 36 || strings.Count(name, ".") != 1 {
		return false
	}
	stem := name[:strings.Index(name, ".")]
	if len(stem) != 32 {
		return false
	}
	for _, c := range stem {
		isHex := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
		if !isHex {
			return false
		}
	}
	return true
}
