package evidence

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode PNG: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write PNG: %v", err)
	}
	return path
}

// fakeWebP builds a RIFF/WEBP container holding an indicator string.
// The payload is not decodable pixel data, which mirrors what a head
// read of a real WebP looks like past the signature.
func fakeWebP(t *testing.T, dir, name string, payload []byte) string {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	buf.Write([]byte{0, 0, 0, 0})
	buf.WriteString("WEBP")
	buf.WriteString("VP8 ")
	buf.Write(payload)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write WebP fixture: %v", err)
	}
	return path
}

func TestExtractPNGDimensions(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "screenshot.png", 64, 128)

	e := NewExtractor("stream", 0, 0)
	bundle, err := e.Extract(path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if bundle.Format != "PNG" {
		t.Errorf("expected format PNG, got %s", bundle.Format)
	}
	if !bundle.HasDimensions || bundle.Width != 64 || bundle.Height != 128 {
		t.Errorf("expected 64x128, got %dx%d (has=%t)", bundle.Width, bundle.Height, bundle.HasDimensions)
	}
	if !bundle.HasAspect || bundle.AspectRatio != 0.5 {
		t.Errorf("expected aspect 0.5, got %f (has=%t)", bundle.AspectRatio, bundle.HasAspect)
	}
	if bundle.Filename != "screenshot.png" {
		t.Errorf("unexpected filename %s", bundle.Filename)
	}
	if bundle.SizeBytes <= 0 || bundle.SizeHuman == "" {
		t.Errorf("expected populated size fields, got %d %q", bundle.SizeBytes, bundle.SizeHuman)
	}
	if bundle.Digest == "" {
		t.Error("expected a head digest")
	}
}

func TestExtractWebPDisguisedAsPNG(t *testing.T) {
	dir := t.TempDir()
	payload := append([]byte{0x00, 0x01}, []byte("xx{\"aigc_label_type\":2}yy")...)
	path := fakeWebP(t, dir, "C2A6B1D4E5F60718293A4B5C6D7E8F90.png", payload)

	e := NewExtractor("stream", 0, 0)
	bundle, err := e.Extract(path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if bundle.Format != "WEBP" {
		t.Errorf("expected magic bytes to win over extension, got %s", bundle.Format)
	}
	found := false
	for _, s := range bundle.Strings {
		if bytes.Contains([]byte(s), []byte("aigc_label_type")) {
			found = true
		}
	}
	if !found {
		t.Errorf("expected aigc_label_type indicator in strings, got %v", bundle.Strings)
	}
}

func TestExtractUnknownFormatFallsBackToExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mov")
	if err := os.WriteFile(path, []byte{0x00, 0x01, 0x02, 0x03}, 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	e := NewExtractor("auto", 0, 0)
	bundle, err := e.Extract(path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if bundle.Format != "MOV" {
		t.Errorf("expected extension fallback MOV, got %s", bundle.Format)
	}
	if bundle.HasDimensions {
		t.Error("expected no dimensions for undecodable data")
	}
}

func TestExtractStringsVocabularyGate(t *testing.T) {
	head := []byte("\x00\x01ByteDance encoder\x02random padding text\x03vid:v09044g40000abc\x00ab\x01")
	e := NewExtractor("auto", 0, 0)
	got := e.extractStrings(head)
	if len(got) != 2 {
		t.Fatalf("expected 2 retained strings, got %d: %v", len(got), got)
	}
	if got[0] != "ByteDance encoder" {
		t.Errorf("unexpected first string %q", got[0])
	}
	if got[1] != "vid:v09044g40000abc" {
		t.Errorf("unexpected second string %q", got[1])
	}
}

func TestExtractMissingFile(t *testing.T) {
	e := NewExtractor("auto", 0, 0)
	if _, err := e.Extract(filepath.Join(t.TempDir(), "nope.mp4")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReadHeadTruncates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.bin")
	data := bytes.Repeat([]byte("abcd"), 1024)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	head, err := readHead(path, 100, "stream", 0)
	if err != nil {
		t.Fatalf("readHead failed: %v", err)
	}
	if len(head) != 100 {
		t.Errorf("expected 100 bytes, got %d", len(head))
	}

	head, err = readHead(path, 1<<20, "mmap", 0)
	if err != nil {
		t.Fatalf("readHead mmap failed: %v", err)
	}
	if len(head) != len(data) {
		t.Errorf("expected full file of %d bytes, got %d", len(data), len(head))
	}
}
