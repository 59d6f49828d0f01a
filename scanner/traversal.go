package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"

	"github.com/TegranGrigorian/tiktok-cleaner/logger"
	"github.com/TegranGrigorian/tiktok-cleaner/utils"
)

var mediaExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
	".gif": true, ".bmp": true,
	".mp4": true, ".mov": true, ".avi": true,
	".mkv": true, ".flv": true, ".webm": true,
}

// IsMediaFile reports whether the extension belongs to a photo or
// video format worth analyzing.
func IsMediaFile(path string) bool {
	return mediaExtensions[strings.ToLower(filepath.Ext(path))]
}

type fileTask struct {
	path string
	info os.FileInfo
}

// collectMediaFiles walks the tree iteratively and returns every media
// file that passes the filters, in a stable order. The organization
// folder is never descended into, so already-sorted files do not get
// re-scanned and re-moved.
func collectMediaFiles(
	ctx context.Context,
	root string,
	matcher *utils.PatternMatcher,
	excludeDir string,
	limiter *rate.Limiter,
) ([]fileTask, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}

	var tasks []fileTask
	type item struct {
		path  string
		entry fs.DirEntry
	}
	stack := []item{{path: root, entry: fs.FileInfoToDirEntry(info)}}
	for len(stack) > 0 {
		select {
		case <-ctx.Done():
			return tasks, ctx.Err()
		default:
		}

		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return tasks, err
			}
		}

		if current.entry.IsDir() {
			if excludeDir != "" && utils.IsPathWithin(current.path, excludeDir) {
				continue
			}
			entries, err := os.ReadDir(current.path)
			if err != nil {
				logger.Warnf("Failed to read directory %s: %v", current.path, err)
				continue
			}
			// push in reverse so files come off the stack in name order
			for i := len(entries) - 1; i >= 0; i-- {
				child := entries[i]
				stack = append(stack, item{
					path:  filepath.Join(current.path, child.Name()),
					entry: child,
				})
			}
			continue
		}

		if !IsMediaFile(current.path) {
			continue
		}
		if !matcher.ShouldInclude(current.path) {
			continue
		}
		entryInfo, err := current.entry.Info()
		if err != nil {
			logger.Warnf("Failed to stat %s: %v", current.path, err)
			continue
		}
		tasks = append(tasks, fileTask{path: current.path, info: entryInfo})
	}
	return tasks, nil
}
