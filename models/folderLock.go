package models

import (
	"path/filepath"
	"time"

	"bitbucket.org/mmdatafocus/production_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FolderLock serializes folder batch imports across operators and processes.
// A lock row is live while released_at is NULL and expires_at is in the
// future; the expiry is the safety net against crashed holders.
type FolderLock struct {
	ID         int        `gorm:"primary_key" json:"id"`
	FolderPath string     `gorm:"size:512;index;not null" json:"folder_path"`
	HolderId   string     `gorm:"size:64;not null" json:"holder_id"`
	HolderName string     `gorm:"size:255" json:"holder_name"`
	AcquiredAt time.Time  `gorm:"autoCreateTime" json:"acquired_at"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	ReleasedAt *time.Time `json:"released_at"`
}

// AcquireFolderLock is a non-blocking try-lock: it returns nil, nil when a
// live lock for the normalized path is held by a different holder. Acquiring
// a path already held by the same holder refreshes the expiry.
func AcquireFolderLock(db *gorm.DB, path string, holderId string, holderName string) (*FolderLock, error) {
	normalized := filepath.Clean(path)
	now := time.Now()

	var acquired *FolderLock
	err := db.Transaction(func(tx *gorm.DB) error {
		var existing FolderLock
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("folder_path = ? AND released_at IS NULL AND expires_at > ?", normalized, now).
			Take(&existing).Error
		if err == nil {
			if existing.HolderId != holderId {
				return nil
			}
			existing.ExpiresAt = now.Add(config.FolderLockTTL())
			if uerr := tx.Model(&FolderLock{}).Where("id = ?", existing.ID).
				Update("expires_at", existing.ExpiresAt).Error; uerr != nil {
				return uerr
			}
			acquired = &existing
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		lock := FolderLock{
			FolderPath: normalized,
			HolderId:   holderId,
			HolderName: holderName,
			ExpiresAt:  now.Add(config.FolderLockTTL()),
		}
		if cerr := tx.Create(&lock).Error; cerr != nil {
			return cerr
		}
		acquired = &lock
		return nil
	})
	if IsDuplicateKeyErr(err) || IsLockConflictErr(err) {
		// Two acquirers raced on an unlocked path; the other insert won.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return acquired, nil
}

// ReleaseFolderLock is idempotent: releasing a released or expired lock is a
// no-op, never an error.
func ReleaseFolderLock(db *gorm.DB, lockId int) error {
	now := time.Now()
	return db.Model(&FolderLock{}).
		Where("id = ? AND released_at IS NULL", lockId).
		Update("released_at", &now).Error
}

// CheckFolderLock is a read-only lookup; returns nil, nil when the path is free.
func CheckFolderLock(db *gorm.DB, path string) (*FolderLock, error) {
	normalized := filepath.Clean(path)
	var lock FolderLock
	err := db.
		Where("folder_path = ? AND released_at IS NULL AND expires_at > ?", normalized, time.Now()).
		Take(&lock).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lock, nil
}

// ReleaseExpiredFolderLocks marks every expired, still-unreleased lock as
// released. Run periodically (cmd/folder-lock-sweep).
func ReleaseExpiredFolderLocks(db *gorm.DB) (int64, error) {
	now := time.Now()
	res := db.Model(&FolderLock{}).
		Where("released_at IS NULL AND expires_at <= ?", now).
		Update("released_at", &now)
	return res.RowsAffected, res.Error
}
