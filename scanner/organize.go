package scanner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TegranGrigorian/tiktok-cleaner/hasher"
	"github.com/TegranGrigorian/tiktok-cleaner/logger"
	"github.com/TegranGrigorian/tiktok-cleaner/scoring"
)

// ErrConflictUnresolved means 999 numbered alternatives for a
// destination name were all taken.
var ErrConflictUnresolved = errors.New("could not resolve filename conflict")

// Actions reported for organized files.
const (
	ActionMoved   = "moved"
	ActionCopied  = "copied"
	ActionSidecar = "sidecar"
)

// Swappable in tests to exercise the phone-mount degradation path.
var (
	renameFile    = os.Rename
	copyAndVerify = copyVerified
)

type Organizer struct {
	layout *Layout
	apply  bool
}

func NewOrganizer(layout *Layout, apply bool) *Organizer {
	return &Organizer{layout: layout, apply: apply}
}

// Place routes one scored file into its tier folder. In apply mode the
// file is moved; otherwise it is copied so the original stays put.
// Phone mounts degrade gracefully: a failed move becomes a copy, and a
// failed copy leaves a sidecar note in the tier folder instead.
func (o *Organizer) Place(path string, score int, verdict scoring.Verdict) (string, string, error) {
	tierDir := o.layout.TierDir(string(verdict))
	if err := os.MkdirAll(tierDir, 0o755); err != nil {
		return "", "", err
	}

	dest, err := resolveConflict(filepath.Join(tierDir, filepath.Base(path)))
	if err != nil {
		return "", "", err
	}

	if o.apply {
		action, err := o.moveFile(path, dest, score, verdict)
		return dest, action, err
	}
	action, err := o.copyFile(path, dest, score, verdict)
	return dest, action, err
}

func (o *Organizer) moveFile(src, dest string, score int, verdict scoring.Verdict) (string, error) {
	if err := renameFile(src, dest); err == nil {
		return ActionMoved, nil
	}

	// Rename fails across devices and on MTP mounts; fall back to a
	// verified copy followed by deleting the original.
	if err := copyAndVerify(src, dest); err != nil {
		logger.Warnf("Could not copy %s to %s: %v", src, dest, err)
		if sidecarErr := writeSidecar(dest, src, score, verdict); sidecarErr != nil {
			return "", sidecarErr
		}
		return ActionSidecar, nil
	}
	if err := os.Remove(src); err != nil {
		logger.Warnf("Copied %s but could not remove original: %v", src, err)
		return ActionCopied, nil
	}
	return ActionMoved, nil
}

func (o *Organizer) copyFile(src, dest string, score int, verdict scoring.Verdict) (string, error) {
	if err := copyAndVerify(src, dest); err != nil {
		logger.Warnf("Could not copy %s to %s: %v", src, dest, err)
		if sidecarErr := writeSidecar(dest, src, score, verdict); sidecarErr != nil {
			return "", sidecarErr
		}
		return ActionSidecar, nil
	}
	return ActionCopied, nil
}

func resolveConflict(target string) (string, error) {
	if _, err := os.Lstat(target); os.IsNotExist(err) {
		return target, nil
	}
	dir := filepath.Dir(target)
	ext := filepath.Ext(target)
	stem := strings.TrimSuffix(filepath.Base(target), ext)
	for i := 1; i < 1000; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", ErrConflictUnresolved
}

// copyVerified copies src to dest and compares content digests. A
// mismatch removes the partial destination, which matters on flaky
// phone mounts that silently truncate writes.
func copyVerified(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dest)
		return err
	}

	srcDigest, err := hasher.DigestFile(src)
	if err != nil {
		return err
	}
	destDigest, err := hasher.DigestFile(dest)
	if err != nil {
		return err
	}
	if srcDigest != destDigest {
		_ = os.Remove(dest)
		return fmt.Errorf("digest mismatch after copy: %s != %s", srcDigest, destDigest)
	}
	return nil
}

func writeSidecar(dest, src string, score int, verdict scoring.Verdict) error {
	ext := filepath.Ext(dest)
	notePath := strings.TrimSuffix(dest, ext) + ".detection_info.txt"
	note := fmt.Sprintf(
		"Original file: %s\nConfidence: %d/100\nCategory: %s\nDetected: %s\n\n"+
			"The file itself could not be transferred from its filesystem.\n",
		src, score, verdict, time.Now().UTC().Format(time.RFC3339))
	return os.WriteFile(notePath, []byte(note), 0o644)
}
