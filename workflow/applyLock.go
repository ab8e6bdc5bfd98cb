package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireImportApplyLock serializes transactional applies across instances
// using MySQL advisory locks. The storage engine would serialize the writes
// anyway; taking the lock explicitly turns incidental serialization into an
// enforced single-writer constraint and avoids spurious write-conflict aborts.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB transaction that performs the apply.
func AcquireImportApplyLock(tx *gorm.DB) error {
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", applyLockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire import apply lock")
	}
	return nil
}

func ReleaseImportApplyLock(tx *gorm.DB) {
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", applyLockName).Scan(&_ok).Error
}

const applyLockName = "import:apply"
