package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/production_backend/utils"
	"gorm.io/gorm"
)

// ImportRecord is one attempt to ingest one source file. It is the durable
// audit trail of the import: terminal statuses keep the result or the failure
// reason in MetadataJSON.
type ImportRecord struct {
	ID           int            `gorm:"primary_key" json:"id"`
	FileName     string         `gorm:"size:255;not null" json:"file_name"`
	StoragePath  string         `gorm:"size:512;not null" json:"storage_path"`
	FileKind     ImportFileKind `gorm:"size:32;not null" json:"file_kind"`
	Status       ImportStatus   `gorm:"size:16;index;not null" json:"status"`
	MetadataJSON []byte         `gorm:"type:json" json:"metadata"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	ProcessedAt  *time.Time     `json:"processed_at"`
}

// Metadata is a tagged union keyed by Status: exactly one of the three shapes
// below is stored, and read sites decode the one matching the status.

type CompletedMeta struct {
	OrderNumber         string           `json:"order_number"`
	AppliedAction       ResolutionAction `json:"applied_action,omitempty"`
	ReplacedOrderNumber string           `json:"replaced_order_number,omitempty"`
	UnitCount           int              `json:"unit_count"`
	GlazingCount        int              `json:"glazing_count"`
	AutoImportStatus    AutoImportStatus `json:"auto_import_status,omitempty"`
}

type ErrorMeta struct {
	Reason string `json:"reason"`
}

type RejectedMeta struct {
	Reason      string    `json:"reason,omitempty"`
	CancelledAt time.Time `json:"cancelled_at"`
}

func CreateImportRecord(db *gorm.DB, fileName, storagePath string, kind ImportFileKind) (*ImportRecord, error) {
	record := ImportRecord{
		FileName:    fileName,
		StoragePath: storagePath,
		FileKind:    kind,
		Status:      ImportStatusPending,
	}
	if err := db.Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func GetImportRecord(db *gorm.DB, id int) (*ImportRecord, error) {
	var record ImportRecord
	err := db.Where("id = ?", id).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("import record", id)
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MarkImportProcessing transitions pending -> processing. An error record may
// also re-enter processing: re-approval of a failed import starts a fresh
// cycle on the same file.
func MarkImportProcessing(db *gorm.DB, id int) error {
	res := db.Model(&ImportRecord{}).
		Where("id = ? AND status IN ?", id, []ImportStatus{ImportStatusPending, ImportStatusError}).
		Updates(map[string]interface{}{"status": ImportStatusProcessing})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("import record %d is not approvable in its current status", id)
	}
	return nil
}

func MarkImportCompleted(db *gorm.DB, id int, meta CompletedMeta) error {
	return writeTerminalStatus(db, id, ImportStatusCompleted, ImportStatusProcessing, meta)
}

func MarkImportError(db *gorm.DB, id int, reason string) error {
	return writeTerminalStatus(db, id, ImportStatusError, ImportStatusProcessing, ErrorMeta{Reason: reason})
}

// MarkImportRejected is only legal from pending: a rejected import never
// wrote any data.
func MarkImportRejected(db *gorm.DB, id int, meta RejectedMeta) error {
	return writeTerminalStatus(db, id, ImportStatusRejected, ImportStatusPending, meta)
}

// writeTerminalStatus writes status, processed timestamp and metadata in one
// statement so a record is never observable half-updated. The from guard
// keeps transitions forward-only.
func writeTerminalStatus(db *gorm.DB, id int, status ImportStatus, from ImportStatus, meta any) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	now := time.Now()
	res := db.Model(&ImportRecord{}).Where("id = ? AND status = ?", id, from).Updates(map[string]interface{}{
		"status":        status,
		"processed_at":  &now,
		"metadata_json": metaJSON,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("import record %d cannot move to %s (expected %s)", id, status, from)
	}
	return nil
}

// DecodeCompletedMeta validates the status before trusting the blob.
func DecodeCompletedMeta(record *ImportRecord) (*CompletedMeta, error) {
	if record.Status != ImportStatusCompleted {
		return nil, fmt.Errorf("import record %d is %s, not completed", record.ID, record.Status)
	}
	var meta CompletedMeta
	if err := json.Unmarshal(record.MetadataJSON, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func DecodeErrorMeta(record *ImportRecord) (*ErrorMeta, error) {
	if record.Status != ImportStatusError {
		return nil, fmt.Errorf("import record %d is %s, not error", record.ID, record.Status)
	}
	var meta ErrorMeta
	if err := json.Unmarshal(record.MetadataJSON, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func DecodeRejectedMeta(record *ImportRecord) (*RejectedMeta, error) {
	if record.Status != ImportStatusRejected {
		return nil, fmt.Errorf("import record %d is %s, not rejected", record.ID, record.Status)
	}
	var meta RejectedMeta
	if err := json.Unmarshal(record.MetadataJSON, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
