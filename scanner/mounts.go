package scanner

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/TegranGrigorian/tiktok-cleaner/cache"
	"github.com/TegranGrigorian/tiktok-cleaner/logger"
)

// OrganizeDirName is the folder created inside the scan root to hold
// the confidence tiers and the result cache.
const OrganizeDirName = "tiktok_detection"

// phoneCacheName is used when the scan root is a phone mount that
// cannot hold the cache file itself.
const phoneCacheName = "tiktok_phone_cache.json"

type Layout struct {
	// BaseDir holds the tier subfolders.
	BaseDir string
	// CachePath is where the not-TikTok cache lives. On constrained
	// mounts it moves to the local temp directory.
	CachePath string
	// Constrained marks MTP/phone mounts where rename and even copy
	// can fail.
	Constrained bool
}

func (l *Layout) TierDir(tier string) string {
	return filepath.Join(l.BaseDir, strings.ToLower(tier))
}

// tierNames is the fixed set of confidence subfolders, created up
// front so the layout is predictable even when a tier stays empty.
var tierNames = []string{"confirmed", "likely", "possible", "unlikely"}

func createTierDirs(base string) {
	for _, tier := range tierNames {
		if err := os.MkdirAll(filepath.Join(base, tier), 0o755); err != nil {
			logger.Warnf("Could not create tier folder %s: %v", tier, err)
		}
	}
}

var listPartitions = disk.Partitions

// isConstrainedMount detects phone-style mounts: gvfs MTP paths, user
// runtime mounts, and any containing partition with a FUSE or MTP
// filesystem type.
func isConstrainedMount(path string) bool {
	lower := strings.ToLower(filepath.ToSlash(path))
	if strings.Contains(lower, "gvfs/mtp") || strings.Contains(lower, "run/user") {
		return true
	}

	partitions, err := listPartitions(true)
	if err != nil {
		return false
	}
	bestLen := -1
	bestFstype := ""
	for _, p := range partitions {
		mount := strings.ToLower(filepath.ToSlash(p.Mountpoint))
		if mount != "/" && !strings.HasSuffix(mount, "/") {
			mount += "/"
		}
		probe := lower
		if !strings.HasSuffix(probe, "/") {
			probe += "/"
		}
		if strings.HasPrefix(probe, mount) && len(mount) > bestLen {
			bestLen = len(mount)
			bestFstype = strings.ToLower(p.Fstype)
		}
	}
	return strings.Contains(bestFstype, "fuse") || strings.Contains(bestFstype, "mtp")
}

// ResolveLayout decides where the organization folder and cache live
// for a scan root. Regular filesystems get both inside the root. A
// constrained mount keeps the tier folders on the device when it can
// but always keeps the cache on local disk; if even folder creation
// fails, everything falls back to the temp directory.
func ResolveLayout(root string) *Layout {
	constrained := isConstrainedMount(root)
	base := filepath.Join(root, OrganizeDirName)

	if !constrained {
		if err := os.MkdirAll(base, 0o755); err == nil {
			createTierDirs(base)
			return &Layout{
				BaseDir:   base,
				CachePath: filepath.Join(base, cache.FileName),
			}
		}
		logger.Warnf("Could not create %s in scan root, using local fallback", OrganizeDirName)
	} else if err := os.MkdirAll(base, 0o755); err == nil {
		logger.Infof("Created organization folder on device: %s", base)
		createTierDirs(base)
		return &Layout{
			BaseDir:     base,
			CachePath:   filepath.Join(os.TempDir(), phoneCacheName),
			Constrained: true,
		}
	} else {
		logger.Info("Device does not support folder creation, using local organization")
	}

	local := filepath.Join(os.TempDir(), OrganizeDirName)
	if err := os.MkdirAll(local, 0o755); err != nil {
		logger.Warnf("Could not create local organization folder %s: %v", local, err)
	} else {
		createTierDirs(local)
	}
	return &Layout{
		BaseDir:     local,
		CachePath:   filepath.Join(local, cache.FileName),
		Constrained: constrained,
	}
}
