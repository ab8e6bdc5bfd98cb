package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"bitbucket.org/mmdatafocus/production_backend/config"
	"bitbucket.org/mmdatafocus/production_backend/models"
	"bitbucket.org/mmdatafocus/production_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const folderScanDepth = 3

// ImportFromFolder runs a whole delivery folder through the import pipeline
// as one batch. The folder is guarded by a non-blocking try-lock: a second
// caller on the same folder gets a ConflictError naming the current holder
// instead of waiting. Files are processed strictly one after another;
// conflicting files that cannot be auto-resolved are parked as pending
// import records and skipped rather than failing the batch.
func ImportFromFolder(ctx context.Context, folderPath string, operatorName string) (*BatchResult, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	folderPath = filepath.Clean(folderPath)
	if err := ValidatePathWithinBase(config.ImportRoot(), folderPath); err != nil {
		return nil, err
	}
	if err := ValidateDirectory(folderPath); err != nil {
		return nil, err
	}

	holderId := uuid.NewString()
	lock, err := models.AcquireFolderLock(db, folderPath, holderId, operatorName)
	if err != nil {
		return nil, err
	}
	if lock == nil {
		holder := "another import"
		if current, cerr := models.CheckFolderLock(db, folderPath); cerr == nil && current != nil {
			holder = current.HolderName
		}
		return nil, utils.NewConflictError(
			fmt.Sprintf("folder %s is already being imported", folderPath), holder)
	}
	defer func() {
		if rerr := models.ReleaseFolderLock(db, lock.ID); rerr != nil {
			config.LogError(logger, "folderImport.go", "ImportFromFolder", "ReleaseFolderLock", lock.ID, rerr)
		}
	}()

	files, err := FindCandidateFiles(folderPath, folderScanDepth)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, utils.NewValidationError("empty_folder",
			fmt.Sprintf("no importable files found under %s", folderPath), nil)
	}

	deliveryDate := ExtractDateFromFolderName(filepath.Base(folderPath))
	delivery, err := models.CreateDelivery(db, filepath.Base(folderPath), folderPath, deliveryDate)
	if err != nil {
		return nil, err
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return models.EmitImportEvent(ctx, tx, config.TopicDeliveryCreated, "", delivery.ID,
			map[string]any{"label": delivery.Label, "files": len(files)})
	})
	if err != nil {
		return nil, err
	}

	batch := &BatchResult{DeliveryId: delivery.ID}
	for _, file := range files {
		fileResult := importFolderFile(ctx, db, delivery, file)
		batch.Results = append(batch.Results, fileResult)
		batch.Summary.Total++
		switch fileResult.Status {
		case models.BatchFileSuccess:
			batch.Summary.Succeeded++
		case models.BatchFileSkipped:
			batch.Summary.Skipped++
		default:
			batch.Summary.Failed++
		}
	}

	if batch.Summary.Succeeded+batch.Summary.Skipped > 0 {
		archived, aerr := MoveFolderToArchive(folderPath, config.ImportArchiveDir())
		if aerr != nil {
			config.LogError(logger, "folderImport.go", "ImportFromFolder", "MoveFolderToArchive", folderPath, aerr)
		} else {
			batch.ArchivedTo = archived
		}
	}
	return batch, nil
}

// importFolderFile handles one file of a batch. All failure modes are folded
// into the per-file result so one broken file never aborts the delivery.
func importFolderFile(ctx context.Context, db *gorm.DB, delivery *models.Delivery, path string) BatchFileResult {
	logger := config.GetLogger()
	fileName := filepath.Base(path)
	result := BatchFileResult{FileName: fileName}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Status = models.BatchFileError
		result.Reason = err.Error()
		return result
	}

	kind := DetectFileKind(fileName, data, "")
	storagePath, serr := stashBatchFile(path)
	if serr != nil {
		result.Status = models.BatchFileError
		result.Reason = serr.Error()
		return result
	}

	record, err := models.CreateImportRecord(db, fileName, storagePath, kind)
	if err != nil {
		result.Status = models.BatchFileError
		result.Reason = err.Error()
		return result
	}
	result.ImportId = record.ID

	switch kind {
	case models.FileKindPriceDocument:
		outcome, perr := processPriceDocument(ctx, db, record, data)
		if perr != nil {
			result.Status = models.BatchFileError
			result.Reason = perr.Error()
			return result
		}
		if outcome.Status == models.AutoImportParseError {
			result.Status = models.BatchFileError
			result.Reason = outcome.Message
			return result
		}
		result.Status = models.BatchFileSuccess
		result.Reason = string(outcome.Status)
		return result

	case models.FileKindMaterialUsage:
		return importFolderOrder(ctx, db, delivery, record, result)

	default:
		result.Status = models.BatchFileSkipped
		result.Reason = "unrecognized file format"
		if merr := models.MarkImportRejected(db, record.ID, models.RejectedMeta{Reason: result.Reason}); merr != nil {
			config.LogError(logger, "folderImport.go", "importFolderFile", "MarkImportRejected", record.ID, merr)
		}
		return result
	}
}

func importFolderOrder(ctx context.Context, db *gorm.DB, delivery *models.Delivery, record *models.ImportRecord, result BatchFileResult) BatchFileResult {
	logger := config.GetLogger()

	data, rerr := readStored(record)
	if rerr != nil {
		result.Status = models.BatchFileError
		result.Reason = rerr.Error()
		return result
	}

	parsed, perr := ParseMaterialUsage(record.FileName, data)
	if perr != nil {
		if merr := models.MarkImportProcessing(db, record.ID); merr == nil {
			_ = models.MarkImportError(db, record.ID, perr.Error())
		}
		result.Status = models.BatchFileError
		result.Reason = perr.Error()
		return result
	}
	result.OrderNumber = parsed.OrderNumber

	// An order already bound to a different delivery is left untouched.
	existing, err := models.GetOrderByNumber(db, parsed.OrderNumber)
	if err != nil {
		result.Status = models.BatchFileError
		result.Reason = err.Error()
		return result
	}
	if existing != nil && existing.DeliveryId != nil && *existing.DeliveryId != delivery.ID {
		result.Status = models.BatchFileSkipped
		result.Reason = fmt.Sprintf("order %s belongs to delivery %d", existing.OrderNumber, *existing.DeliveryId)
		if merr := models.MarkImportRejected(db, record.ID, models.RejectedMeta{Reason: result.Reason}); merr != nil {
			config.LogError(logger, "folderImport.go", "importFolderOrder", "MarkImportRejected", record.ID, merr)
		}
		return result
	}

	resolution := Resolution{}
	conflict, cerr := DetectConflict(db, parsed.OrderNumber, parsed.Counts())
	if cerr != nil {
		result.Status = models.BatchFileError
		result.Reason = cerr.Error()
		return result
	}
	if conflict != nil {
		def, ok := conflict.DefaultAction()
		if !ok || !config.AutoReplaceEqualCounts() {
			// Needs an operator decision; stays pending for the review queue.
			result.Status = models.BatchFileSkipped
			result.Reason = fmt.Sprintf("conflict with order %s requires manual resolution", conflict.ExistingOrderNumber)
			return result
		}
		resolution.Action = def
		resolution.TargetOrderNumber = conflict.ExistingOrderNumber
	}

	if err := models.MarkImportProcessing(db, record.ID); err != nil {
		result.Status = models.BatchFileError
		result.Reason = err.Error()
		return result
	}

	applied, err := applyParsedOrder(ctx, db, parsed, applyOptions{
		Resolution: resolution,
		DeliveryId: &delivery.ID,
		SourceFile: record.FileName,
	})
	if err != nil {
		if merr := models.MarkImportError(db, record.ID, err.Error()); merr != nil {
			config.LogError(logger, "folderImport.go", "importFolderOrder", "MarkImportError", record.ID, merr)
		}
		result.Status = models.BatchFileError
		result.Reason = err.Error()
		return result
	}

	meta := models.CompletedMeta{
		OrderNumber:         applied.OrderNumber,
		AppliedAction:       applied.AppliedAction,
		ReplacedOrderNumber: applied.ReplacedOrderNumber,
		UnitCount:           applied.UnitCount,
		GlazingCount:        applied.GlazingCount,
	}
	if err := models.MarkImportCompleted(db, record.ID, meta); err != nil {
		result.Status = models.BatchFileError
		result.Reason = err.Error()
		return result
	}
	result.Status = models.BatchFileSuccess
	result.OrderNumber = applied.OrderNumber
	return result
}

func stashBatchFile(src string) (string, error) {
	storagePath := filepath.Join(config.ImportStorageDir(),
		fmt.Sprintf("%s_%s", uuid.NewString()[:8], filepath.Base(src)))
	if err := CopyFile(src, storagePath); err != nil {
		return "", err
	}
	return storagePath, nil
}

func readStored(record *models.ImportRecord) ([]byte, error) {
	data, err := os.ReadFile(record.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("read stored copy of %s: %w", record.FileName, err)
	}
	return data, nil
}
