package utils

import (
	"path/filepath"
	"testing"
)

func TestPatternMatcherIncludes(t *testing.T) {
	m := NewPatternMatcher([]string{"*.mp4", "*.jpg"}, nil)
	if !m.ShouldInclude("/data/video.mp4") {
		t.Error("expected *.mp4 include to match video.mp4")
	}
	if m.ShouldInclude("/data/notes.txt") {
		t.Error("expected notes.txt to be rejected by include list")
	}
}

func TestPatternMatcherExcludesWin(t *testing.T) {
	m := NewPatternMatcher([]string{"*.mp4"}, []string{"download*"})
	if m.ShouldInclude("/data/download_123.mp4") {
		t.Error("exclude pattern should override a matching include")
	}
	if !m.ShouldInclude("/data/clip.mp4") {
		t.Error("non-excluded mp4 should pass")
	}
}

func TestPatternMatcherRegex(t *testing.T) {
	m := NewPatternMatcher(nil, []string{`/cache/`})
	if m.ShouldInclude("/data/cache/file.jpg") {
		t.Error("regex exclude should match the full path")
	}
	if !m.ShouldInclude("/data/photos/file.jpg") {
		t.Error("unrelated path should pass")
	}
}

func TestPatternMatcherNilAllowsAll(t *testing.T) {
	var m *PatternMatcher
	if !m.ShouldInclude("/any/path") {
		t.Error("nil matcher should admit everything")
	}
}

func TestIsPathWithin(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "sub", "file.jpg")
	if !IsPathWithin(inside, root) {
		t.Errorf("expected %s to be within %s", inside, root)
	}
	if IsPathWithin(root, inside) {
		t.Error("root should not be within its own child")
	}
	other := t.TempDir()
	if IsPathWithin(filepath.Join(other, "x"), root) {
		t.Error("sibling temp dir should not be within root")
	}
	if !IsPathWithin(root, root) {
		t.Error("a path should be within itself")
	}
}

func TestHumanBytes(t *testing.T) {
	cases := []struct {
		size int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{3 * 1024 * 1024, "3.0 MB"},
		{int64(1.5 * 1024 * 1024 * 1024), "1.5 GB"},
	}
	for _, tc := range cases {
		if got := HumanBytes(tc.size); got != tc.want {
			t.Errorf("HumanBytes(%d) = %q, want %q", tc.size, got, tc.want)
		}
	}
}
