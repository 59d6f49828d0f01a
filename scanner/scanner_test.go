package scanner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/TegranGrigorian/tiktok-cleaner/cache"
	"github.com/TegranGrigorian/tiktok-cleaner/config"
	"github.com/TegranGrigorian/tiktok-cleaner/output"
	"github.com/TegranGrigorian/tiktok-cleaner/scoring"
	"github.com/TegranGrigorian/tiktok-cleaner/utils"
)

func testConfig(scanPath string) *config.Config {
	return &config.Config{
		ScanPath:         scanPath,
		ConcurrencyLevel: 2,
		HeadReadMode:     "stream",
		HeadMaxBytes:     1 << 20,
	}
}

// confirmedFixture writes a WebP container disguised as a .png with an
// AIGC marker, which scores well past the confirmed threshold.
func confirmedFixture(t *testing.T, dir string) string {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	buf.Write([]byte{0, 0, 0, 0})
	buf.WriteString("WEBP")
	buf.WriteString("VP8 ")
	buf.Write([]byte{0x00, 0x01})
	buf.WriteString(`{"aigc_label_type":2}`)
	path := filepath.Join(dir, "c2a6b1d4e5f60718293a4b5c6d7e8f90.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func noiseFixture(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte{0x11, 0x22, 0x33, 0x44, 0x55}, 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func TestIsMediaFile(t *testing.T) {
	if !IsMediaFile("/data/a.JPG") || !IsMediaFile("/data/b.webm") {
		t.Error("expected media extensions to match case-insensitively")
	}
	if IsMediaFile("/data/notes.txt") || IsMediaFile("/data/noext") {
		t.Error("expected non-media files to be rejected")
	}
}

func TestCollectMediaFilesExcludesOrgDir(t *testing.T) {
	dir := t.TempDir()
	noiseFixture(t, dir, "a.jpg")
	orgDir := filepath.Join(dir, OrganizeDirName, "confirmed")
	if err := os.MkdirAll(orgDir, 0o755); err != nil {
		t.Fatalf("failed to create org dir: %v", err)
	}
	noiseFixture(t, orgDir, "already_sorted.png")
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	tasks, err := collectMediaFiles(context.Background(), dir,
		utils.NewPatternMatcher(nil, nil), filepath.Join(dir, OrganizeDirName), nil)
	if err != nil {
		t.Fatalf("collectMediaFiles failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	if filepath.Base(tasks[0].path) != "a.jpg" {
		t.Errorf("unexpected task %s", tasks[0].path)
	}
}

func TestResolveConflict(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "clip.mp4")

	got, err := resolveConflict(target)
	if err != nil || got != target {
		t.Fatalf("fresh target should resolve to itself, got %s (%v)", got, err)
	}

	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	got, err = resolveConflict(target)
	if err != nil {
		t.Fatalf("resolveConflict failed: %v", err)
	}
	if filepath.Base(got) != "clip_1.mp4" {
		t.Errorf("expected clip_1.mp4, got %s", filepath.Base(got))
	}
}

func TestResolveConflictExhausted(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "c.png")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	for i := 1; i < 1000; i++ {
		path := filepath.Join(dir, fmt.Sprintf("c_%d.png", i))
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("failed to write fixture %d: %v", i, err)
		}
	}
	if _, err := resolveConflict(target); err != ErrConflictUnresolved {
		t.Errorf("expected ErrConflictUnresolved, got %v", err)
	}
}

func TestOrganizerPreviewCopies(t *testing.T) {
	dir := t.TempDir()
	src := noiseFixture(t, dir, "match.mp4")
	layout := &Layout{BaseDir: filepath.Join(dir, OrganizeDirName)}

	org := NewOrganizer(layout, false)
	dest, action, err := org.Place(src, 85, scoring.VerdictConfirmed)
	if err != nil {
		t.Fatalf("Place failed: %v", err)
	}
	if action != ActionCopied {
		t.Errorf("preview mode should copy, got %s", action)
	}
	if filepath.Dir(dest) != layout.TierDir("confirmed") {
		t.Errorf("unexpected destination %s", dest)
	}
	if _, err := os.Stat(src); err != nil {
		t.Error("preview mode must leave the original in place")
	}
	srcData, _ := os.ReadFile(src)
	destData, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("destination not written: %v", err)
	}
	if !bytes.Equal(srcData, destData) {
		t.Error("copied content differs from source")
	}
}

func TestOrganizerApplyMoves(t *testing.T) {
	dir := t.TempDir()
	src := noiseFixture(t, dir, "match.mp4")
	layout := &Layout{BaseDir: filepath.Join(dir, OrganizeDirName)}

	org := NewOrganizer(layout, true)
	dest, action, err := org.Place(src, 50, scoring.VerdictLikely)
	if err != nil {
		t.Fatalf("Place failed: %v", err)
	}
	if action != ActionMoved {
		t.Errorf("apply mode should move, got %s", action)
	}
	if filepath.Dir(dest) != layout.TierDir("likely") {
		t.Errorf("unexpected destination %s", dest)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("apply mode must remove the original")
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("destination missing after move: %v", err)
	}
}

func TestOrganizerMoveFallsBackToCopy(t *testing.T) {
	dir := t.TempDir()
	src := noiseFixture(t, dir, "match.mp4")
	layout := &Layout{BaseDir: filepath.Join(dir, OrganizeDirName)}

	// MTP mounts reject rename across the device boundary.
	renameFile = func(string, string) error { return fmt.Errorf("invalid cross-device link") }
	defer func() { renameFile = os.Rename }()

	org := NewOrganizer(layout, true)
	dest, action, err := org.Place(src, 85, scoring.VerdictConfirmed)
	if err != nil {
		t.Fatalf("Place failed: %v", err)
	}
	if action != ActionMoved {
		t.Errorf("copy plus remove should still report a move, got %s", action)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("original should be removed after the copy fallback")
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("destination missing after copy fallback: %v", err)
	}
}

func TestOrganizerSidecarWhenCopyFails(t *testing.T) {
	dir := t.TempDir()
	src := noiseFixture(t, dir, "clip.mp4")
	layout := &Layout{BaseDir: filepath.Join(dir, OrganizeDirName)}

	renameFile = func(string, string) error { return fmt.Errorf("invalid cross-device link") }
	copyAndVerify = func(string, string) error { return fmt.Errorf("input/output error") }
	defer func() {
		renameFile = os.Rename
		copyAndVerify = copyVerified
	}()

	org := NewOrganizer(layout, true)
	dest, action, err := org.Place(src, 73, scoring.VerdictConfirmed)
	if err != nil {
		t.Fatalf("Place failed: %v", err)
	}
	if action != ActionSidecar {
		t.Fatalf("expected sidecar action, got %s", action)
	}
	if _, err := os.Stat(src); err != nil {
		t.Error("original must stay in place when it cannot be transferred")
	}

	note := filepath.Join(layout.TierDir("confirmed"), "clip.detection_info.txt")
	data, err := os.ReadFile(note)
	if err != nil {
		t.Fatalf("sidecar note not written: %v", err)
	}
	for _, want := range []string{
		"Original file: " + src,
		"Confidence: 73/100",
		"Category: CONFIRMED",
	} {
		if !bytes.Contains(data, []byte(want)) {
			t.Errorf("sidecar note missing %q:\n%s", want, data)
		}
	}
	_ = dest
}

func TestOrganizerConflictSuffix(t *testing.T) {
	dir := t.TempDir()
	layout := &Layout{BaseDir: filepath.Join(dir, OrganizeDirName)}
	org := NewOrganizer(layout, false)

	first := noiseFixture(t, dir, "clip.mp4")
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}
	second := noiseFixture(t, sub, "clip.mp4")

	dest1, _, err := org.Place(first, 85, scoring.VerdictConfirmed)
	if err != nil {
		t.Fatalf("first Place failed: %v", err)
	}
	dest2, _, err := org.Place(second, 85, scoring.VerdictConfirmed)
	if err != nil {
		t.Fatalf("second Place failed: %v", err)
	}
	if filepath.Base(dest1) != "clip.mp4" || filepath.Base(dest2) != "clip_1.mp4" {
		t.Errorf("unexpected destinations %s, %s", dest1, dest2)
	}
}

func TestRunPreviewEndToEnd(t *testing.T) {
	t.Setenv("TIKTOK_CLEANER_DISABLE_PROGRESS", "1")
	dir := t.TempDir()
	confirmed := confirmedFixture(t, dir)
	noise := noiseFixture(t, dir, "random.jpg")

	cfg := testConfig(dir)
	metrics := &output.Metrics{}
	summary, err := Run(context.Background(), cfg, metrics, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.TotalFiles != 2 || summary.Analyzed != 2 || summary.Skipped != 0 {
		t.Errorf("unexpected counts: %+v", summary)
	}
	if summary.Confirmed != 1 {
		t.Errorf("expected 1 confirmed, got %d", summary.Confirmed)
	}
	if summary.Unlikely != 1 {
		t.Errorf("expected 1 unlikely, got %d", summary.Unlikely)
	}
	if summary.Organized != 1 {
		t.Errorf("expected 1 organized, got %d", summary.Organized)
	}

	organized := filepath.Join(dir, OrganizeDirName, "confirmed", filepath.Base(confirmed))
	if _, err := os.Stat(organized); err != nil {
		t.Errorf("confirmed file not organized: %v", err)
	}
	if _, err := os.Stat(confirmed); err != nil {
		t.Error("preview run must not move the original")
	}
	if _, err := os.Stat(filepath.Join(dir, OrganizeDirName, cache.FileName)); err != nil {
		t.Errorf("cache file not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, OrganizeDirName, "unlikely")); err != nil {
		t.Errorf("empty tier folder should still exist: %v", err)
	}
	if metrics.FilesEnumerated != 2 || metrics.FilesAnalyzed != 2 {
		t.Errorf("metrics not updated: %+v", metrics)
	}

	// A second run skips the cached noise file but re-analyzes the
	// match, since matches are never served from cache.
	summary2, err := Run(context.Background(), testConfig(dir), nil, nil)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if summary2.Skipped != 1 {
		t.Errorf("expected 1 skipped on second run, got %d", summary2.Skipped)
	}
	if summary2.Analyzed != 1 {
		t.Errorf("expected 1 analyzed on second run, got %d", summary2.Analyzed)
	}
	_ = noise
}

func TestIsConstrainedMountPathHints(t *testing.T) {
	if !isConstrainedMount("/run/user/1000/gvfs/mtp:host=Pixel/Internal storage/DCIM") {
		t.Error("gvfs MTP path should be constrained")
	}
	if !isConstrainedMount("/run/user/1000/somewhere") {
		t.Error("user runtime mount should be constrained")
	}
}

func TestResolveLayoutRegularFilesystem(t *testing.T) {
	dir := t.TempDir()
	layout := ResolveLayout(dir)
	if layout.Constrained {
		t.Error("temp dir should not be constrained")
	}
	if layout.BaseDir != filepath.Join(dir, OrganizeDirName) {
		t.Errorf("unexpected base dir %s", layout.BaseDir)
	}
	if layout.CachePath != filepath.Join(layout.BaseDir, cache.FileName) {
		t.Errorf("unexpected cache path %s", layout.CachePath)
	}
	if _, err := os.Stat(layout.BaseDir); err != nil {
		t.Errorf("base dir not created: %v", err)
	}
	for _, tier := range []string{"confirmed", "likely", "possible", "unlikely"} {
		if _, err := os.Stat(layout.TierDir(tier)); err != nil {
			t.Errorf("tier folder %s not created: %v", tier, err)
		}
	}
}
