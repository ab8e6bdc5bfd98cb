package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// AutoReplaceEqualCounts controls whether a variant whose structural counts
// (unit count, glazing count) exactly match the existing base order may be
// applied automatically as a replacement. When false every variant conflict
// needs an operator decision, even for equal counts.
//
// Set via env:
// - IMPORT_AUTO_REPLACE_EQUAL_COUNTS=false to disable (default: enabled)
func AutoReplaceEqualCounts() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("IMPORT_AUTO_REPLACE_EQUAL_COUNTS")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// ImportRoot is the only directory tree folder batch imports may read from.
//
// Set via env:
// - IMPORT_ROOT (default /srv/production/import)
func ImportRoot() string {
	if v := strings.TrimSpace(os.Getenv("IMPORT_ROOT")); v != "" {
		return filepath.Clean(v)
	}
	return "/srv/production/import"
}

// ImportArchiveDir is where source folders are moved after a batch import.
//
// Set via env:
// - IMPORT_ARCHIVE_DIR (default <IMPORT_ROOT>/archive)
func ImportArchiveDir() string {
	if v := strings.TrimSpace(os.Getenv("IMPORT_ARCHIVE_DIR")); v != "" {
		return filepath.Clean(v)
	}
	return filepath.Join(ImportRoot(), "archive")
}

// ImportStorageDir is where single uploaded files are stored before approval.
//
// Set via env:
// - IMPORT_STORAGE_DIR (default <IMPORT_ROOT>/uploads)
func ImportStorageDir() string {
	if v := strings.TrimSpace(os.Getenv("IMPORT_STORAGE_DIR")); v != "" {
		return filepath.Clean(v)
	}
	return filepath.Join(ImportRoot(), "uploads")
}

// FolderLockTTL is the stale-lock safety net: a lock older than this is
// treated as released even if the holder crashed without releasing it.
//
// Set via env:
// - FOLDER_LOCK_TTL_MINUTES (default 15)
func FolderLockTTL() time.Duration {
	return time.Duration(intFromEnv("FOLDER_LOCK_TTL_MINUTES", 15)) * time.Minute
}

// ApplyTimeout bounds one transactional apply. Material-usage files can carry
// hundreds of dependent rows, so this is deliberately generous.
//
// Set via env:
// - IMPORT_APPLY_TIMEOUT_SECONDS (default 60)
func ApplyTimeout() time.Duration {
	return time.Duration(intFromEnv("IMPORT_APPLY_TIMEOUT_SECONDS", 60)) * time.Second
}
