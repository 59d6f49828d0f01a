package utils

import (
	"fmt"
	"path/filepath"
	"strings"
)

// IsPathWithin returns true if path sits at or below root after symlink
// resolution. Used to keep the scanner out of its own organization folder.
func IsPathWithin(path, root string) bool {
	absPath, err := filepath.Abs(resolveSymlinks(path))
	if err != nil {
		return false
	}
	absRoot, err := filepath.Abs(resolveSymlinks(root))
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func resolveSymlinks(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}

// HumanBytes renders a byte count the way file managers do (e.g. "3.4 MB").
func HumanBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	value := float64(size)
	suffixes := []string{"KB", "MB", "GB", "TB", "PB"}
	idx := -1
	for value >= unit && idx < len(suffixes)-1 {
		value /= unit
		idx++
	}
	return fmt.Sprintf("%.1f %s", value, suffixes[idx])
}
