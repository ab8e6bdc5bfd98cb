package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bitbucket.org/mmdatafocus/production_backend/config"
	"bitbucket.org/mmdatafocus/production_backend/models"
	"bitbucket.org/mmdatafocus/production_backend/utils"
	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxImportFileBytes = 20 * 1024 * 1024

var validate = validator.New()

// UploadResult is what uploadFile hands back: the created record plus, for
// price documents, the automatic processing outcome.
type UploadResult struct {
	Record *models.ImportRecord `json:"record"`
	Auto   *AutoImportOutcome   `json:"auto_import_status,omitempty"`
}

// ApprovalOutcome is the closed result shape of approveImport /
// processWithResolution.
type ApprovalOutcome struct {
	Result    *ApplyResult       `json:"result,omitempty"`
	Auto      *AutoImportOutcome `json:"auto,omitempty"`
	Cancelled bool               `json:"cancelled,omitempty"`
}

type uploadRequest struct {
	FileName string `validate:"required,max=255"`
	Data     []byte `validate:"required"`
}

// UploadFile stores the bytes, creates a pending ImportRecord and, for price
// documents, immediately runs the automatic pipeline. No order data is
// written here for material-usage files; that happens on approval.
func UploadFile(ctx context.Context, fileName string, data []byte, mimeHint string) (*UploadResult, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	if err := validate.Struct(uploadRequest{FileName: fileName, Data: data}); err != nil {
		return nil, utils.NewValidationError("invalid_upload", "file name and content are required", nil)
	}
	if len(data) > maxImportFileBytes {
		return nil, utils.NewValidationError("file_too_large",
			fmt.Sprintf("file exceeds %d bytes", maxImportFileBytes), nil)
	}

	kind := DetectFileKind(fileName, data, mimeHint)

	storagePath := filepath.Join(config.ImportStorageDir(),
		fmt.Sprintf("%s_%s", uuid.NewString()[:8], filepath.Base(fileName)))
	if err := os.MkdirAll(filepath.Dir(storagePath), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(storagePath, data, 0o644); err != nil {
		return nil, err
	}

	record, err := models.CreateImportRecord(db, filepath.Base(fileName), storagePath, kind)
	if err != nil {
		config.LogError(logger, "orchestrator.go", "UploadFile", "CreateImportRecord", fileName, err)
		return nil, err
	}

	result := &UploadResult{Record: record}
	if kind == models.FileKindPriceDocument {
		outcome, perr := processPriceDocument(ctx, db, record, data)
		if perr != nil {
			return nil, perr
		}
		result.Auto = outcome
		// reload so the caller sees the terminal status
		if refreshed, rerr := models.GetImportRecord(db, record.ID); rerr == nil {
			result.Record = refreshed
		}
	}
	return result, nil
}

// GetPreview re-parses the stored file and runs the conflict classifier so a
// decision UI can be rendered. Never mutates the record. Results are cached
// in Redis and invalidated by any state-changing operation on the record.
func GetPreview(ctx context.Context, id int) (*PreviewResult, error) {
	db := config.GetDB()

	if cached, ok, _ := utils.GetRedis[PreviewResult](id); ok {
		return cached, nil
	}

	record, err := models.GetImportRecord(db, id)
	if err != nil {
		return nil, err
	}

	switch record.FileKind {
	case models.FileKindMaterialUsage:
		parsed, perr := ParseMaterialUsageFile(record.StoragePath)
		if perr != nil {
			return nil, perr
		}
		conflict, cerr := DetectConflict(db, parsed.OrderNumber, parsed.Counts())
		if cerr != nil {
			return nil, cerr
		}
		preview := &PreviewResult{
			Record:       record,
			Data:         parsed,
			Summary:      parsed.Counts(),
			ConflictInfo: conflict,
		}
		if cerr := utils.StoreRedis[PreviewResult](preview, id); cerr != nil {
			config.LogError(config.GetLogger(), "orchestrator.go", "GetPreview", "StoreRedis", id, cerr)
		}
		return preview, nil
	case models.FileKindPriceDocument:
		return &PreviewResult{Record: record}, nil
	default:
		return nil, utils.NewValidationError("unsupported_file_kind",
			fmt.Sprintf("cannot preview file kind %q", record.FileKind), nil)
	}
}

func invalidatePreview(id int) {
	if err := utils.ClearRedis[PreviewResult](id); err != nil {
		config.LogError(config.GetLogger(), "orchestrator.go", "invalidatePreview", "ClearRedis", id, err)
	}
}

// ApproveImport runs a full approval cycle: pending -> processing ->
// completed|error. When the parsed order conflicts with an existing variant
// and no action was supplied, it raises a ValidationError carrying the
// serialized conflict and leaves the record pending; nothing is written.
func ApproveImport(ctx context.Context, id int, action models.ResolutionAction, replaceBase bool) (*ApprovalOutcome, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	unlock, err := acquireRecordLock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	record, err := models.GetImportRecord(db, id)
	if err != nil {
		return nil, err
	}

	switch record.FileKind {
	case models.FileKindMaterialUsage:
		resolution := Resolution{Action: action}
		if resolution.Action == "" && replaceBase {
			resolution.Action = models.ActionReplaceBase
		}
		result, aerr := approveMaterialUsage(ctx, db, record, resolution)
		if aerr != nil {
			return nil, aerr
		}
		invalidatePreview(record.ID)
		return &ApprovalOutcome{Result: result}, nil

	case models.FileKindPriceDocument:
		// Re-approval path for price documents whose automatic run failed.
		data, rerr := os.ReadFile(record.StoragePath)
		if rerr != nil {
			return nil, rerr
		}
		outcome, perr := processPriceDocument(ctx, db, record, data)
		if perr != nil {
			return nil, perr
		}
		return &ApprovalOutcome{Auto: outcome}, nil

	default:
		config.LogError(logger, "orchestrator.go", "ApproveImport", "file kind", record.FileKind,
			fmt.Errorf("unsupported file kind"))
		return nil, utils.NewValidationError("unsupported_file_kind",
			fmt.Sprintf("cannot import file kind %q", record.FileKind), nil)
	}
}

// ProcessWithResolution is the approval variant taking an explicit operator
// decision. Cancel is an early, non-erroring short-circuit: the record is
// rejected and nothing is persisted.
func ProcessWithResolution(ctx context.Context, id int, res Resolution) (*ApprovalOutcome, error) {
	db := config.GetDB()

	unlock, err := acquireRecordLock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	record, err := models.GetImportRecord(db, id)
	if err != nil {
		return nil, err
	}

	if res.Action == models.ActionCancel {
		meta := models.RejectedMeta{Reason: "cancelled by operator", CancelledAt: time.Now()}
		if merr := models.MarkImportRejected(db, record.ID, meta); merr != nil {
			return nil, merr
		}
		invalidatePreview(record.ID)
		return &ApprovalOutcome{Cancelled: true}, nil
	}

	if record.FileKind != models.FileKindMaterialUsage {
		return nil, utils.NewValidationError("unsupported_file_kind",
			fmt.Sprintf("cannot resolve file kind %q", record.FileKind), nil)
	}

	result, aerr := approveMaterialUsage(ctx, db, record, res)
	if aerr != nil {
		return nil, aerr
	}
	invalidatePreview(record.ID)
	return &ApprovalOutcome{Result: result}, nil
}

// approveMaterialUsage is the shared apply path: parse, classify, resolve,
// then one transactional apply bracketed by the state machine writes.
func approveMaterialUsage(ctx context.Context, db *gorm.DB, record *models.ImportRecord, resolution Resolution) (*ApplyResult, error) {
	logger := config.GetLogger()

	parsed, perr := ParseMaterialUsageFile(record.StoragePath)
	if perr != nil {
		// Parse failures are recorded into the audit trail, then re-raised.
		if merr := models.MarkImportProcessing(db, record.ID); merr == nil {
			if eerr := models.MarkImportError(db, record.ID, perr.Error()); eerr != nil {
				config.LogError(logger, "orchestrator.go", "approveMaterialUsage", "MarkImportError", record.ID, eerr)
			}
		}
		return nil, perr
	}

	conflict, err := DetectConflict(db, parsed.OrderNumber, parsed.Counts())
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		if resolution.Action == "" {
			def, ok := conflict.DefaultAction()
			if !ok || !config.AutoReplaceEqualCounts() {
				return nil, utils.NewValidationError("conflict_requires_decision",
					fmt.Sprintf("order %s conflicts with existing order %s", conflict.IncomingOrderNumber, conflict.ExistingOrderNumber),
					conflict)
			}
			resolution.Action = def
		}
		if resolution.TargetOrderNumber == "" {
			resolution.TargetOrderNumber = conflict.ExistingOrderNumber
		}
	}
	if resolution.Action == "" {
		resolution.Action = models.ActionAddNew
	}

	if err := models.MarkImportProcessing(db, record.ID); err != nil {
		return nil, err
	}

	result, err := applyParsedOrder(ctx, db, parsed, applyOptions{
		Resolution: resolution,
		SourceFile: record.FileName,
	})
	if err != nil {
		if merr := models.MarkImportError(db, record.ID, err.Error()); merr != nil {
			config.LogError(logger, "orchestrator.go", "approveMaterialUsage", "MarkImportError", record.ID, merr)
		}
		return nil, err
	}

	meta := models.CompletedMeta{
		OrderNumber:         result.OrderNumber,
		AppliedAction:       result.AppliedAction,
		ReplacedOrderNumber: result.ReplacedOrderNumber,
		UnitCount:           result.UnitCount,
		GlazingCount:        result.GlazingCount,
	}
	if err := models.MarkImportCompleted(db, record.ID, meta); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteImport removes the record and, when the import had produced an order,
// cascades to that order. Missing orders and malformed stored metadata are
// logged and tolerated: the record deletion still proceeds.
func DeleteImport(ctx context.Context, id int) error {
	db := config.GetDB()
	logger := config.GetLogger()

	record, err := models.GetImportRecord(db, id)
	if err != nil {
		return err
	}

	if record.Status == models.ImportStatusCompleted {
		meta, derr := models.DecodeCompletedMeta(record)
		if derr != nil {
			config.LogError(logger, "orchestrator.go", "DeleteImport", "DecodeCompletedMeta", record.ID, derr)
		} else if meta.OrderNumber != "" {
			order, oerr := models.GetOrderByNumber(db, meta.OrderNumber)
			if oerr != nil {
				return oerr
			}
			if order != nil {
				err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
					if derr := models.DeleteOrderCascade(tx, order.ID); derr != nil {
						return derr
					}
					deliveryId := 0
					if order.DeliveryId != nil {
						deliveryId = *order.DeliveryId
					}
					return models.EmitImportEvent(ctx, tx, config.TopicOrderUpdated, order.OrderNumber, deliveryId, map[string]any{"deleted": true})
				})
				if err != nil {
					return err
				}
			}
		}
	}

	if record.StoragePath != "" {
		if rerr := os.Remove(record.StoragePath); rerr != nil && !os.IsNotExist(rerr) {
			config.LogError(logger, "orchestrator.go", "DeleteImport", "remove stored file", record.StoragePath, rerr)
		}
	}
	invalidatePreview(record.ID)
	return db.Where("id = ?", id).Delete(&models.ImportRecord{}).Error
}

// acquireRecordLock serializes approvals of the same import record across
// instances. Without Redis (unit tests) it degrades to a no-op; the apply
// lock and the status transition guards still keep writes safe.
func acquireRecordLock(ctx context.Context, id int) (func(), error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}, nil
	}
	key := fmt.Sprintf("import:approve:%d", id)
	lock, err := locker.Obtain(ctx, key, config.ApplyTimeout()+10*time.Second, nil)
	if err == redislock.ErrNotObtained {
		return nil, utils.NewConflictError(fmt.Sprintf("import %d is already being processed", id), "")
	}
	if err != nil {
		return nil, err
	}
	return func() { _ = lock.Release(ctx) }, nil
}
