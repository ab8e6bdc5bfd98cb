package importer

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/production_backend/config"
	"bitbucket.org/mmdatafocus/production_backend/models"
	"bitbucket.org/mmdatafocus/production_backend/utils"
	"bitbucket.org/mmdatafocus/production_backend/workflow"
	"gorm.io/gorm"
)

type applyOptions struct {
	Resolution Resolution
	DeliveryId *int
	SourceFile string
}

// applyParsedOrder is the single atomic unit of work of an import: resolve or
// create the target order, full-replace its dependents, recompute the derived
// aggregates and write the post-commit event record. Everything inside one
// transaction under the import apply lock; a failure at any step rolls the
// whole graph back.
func applyParsedOrder(ctx context.Context, db *gorm.DB, parsed *ParsedOrder, opts applyOptions) (*ApplyResult, error) {
	ctx, cancel := context.WithTimeout(ctx, config.ApplyTimeout())
	defer cancel()

	var result ApplyResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := workflow.AcquireImportApplyLock(tx); err != nil {
			return err
		}
		defer workflow.ReleaseImportApplyLock(tx)

		target, err := executeResolution(tx, opts.Resolution, parsed.OrderNumber)
		if err != nil {
			return err
		}

		now := time.Now()
		order := target.Order
		if order == nil {
			order = &models.ProductionOrder{
				OrderNumber:  utils.NormalizeOrderNumber(parsed.OrderNumber),
				CustomerName: parsed.CustomerName,
				SourceFile:   opts.SourceFile,
				DeliveryId:   opts.DeliveryId,
				ImportedAt:   &now,
			}
			if cerr := tx.Create(order).Error; cerr != nil {
				if models.IsDuplicateKeyErr(cerr) || models.IsLockConflictErr(cerr) {
					return utils.NewConflictError(
						"order "+order.OrderNumber+" was created concurrently by another import", "")
				}
				return cerr
			}
			result.Created = true
		} else {
			updates := map[string]interface{}{
				"customer_name": parsed.CustomerName,
				"source_file":   opts.SourceFile,
				"imported_at":   &now,
			}
			if opts.DeliveryId != nil {
				updates["delivery_id"] = opts.DeliveryId
			}
			if uerr := tx.Model(&models.ProductionOrder{}).Where("id = ?", order.ID).
				Updates(updates).Error; uerr != nil {
				return uerr
			}
		}

		if err := insertDependents(tx, order.ID, parsed); err != nil {
			return err
		}
		if err := models.RecomputeOrderAggregates(tx, order.ID); err != nil {
			return err
		}
		if err := applyPendingPriceDocuments(tx, order.ID, order.OrderNumber); err != nil {
			return err
		}

		var refreshed models.ProductionOrder
		if err := tx.Where("id = ?", order.ID).Take(&refreshed).Error; err != nil {
			return err
		}

		deliveryId := 0
		if refreshed.DeliveryId != nil {
			deliveryId = *refreshed.DeliveryId
		}
		if err := models.EmitImportEvent(ctx, tx, config.TopicOrderUpdated, refreshed.OrderNumber, deliveryId, &refreshed); err != nil {
			return err
		}

		result.OrderId = refreshed.ID
		result.OrderNumber = refreshed.OrderNumber
		result.AppliedAction = opts.Resolution.Action
		result.ReplacedOrderNumber = target.ReplacedNumber
		result.UnitCount = refreshed.UnitCount
		result.GlazingCount = refreshed.GlazingCount
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func insertDependents(tx *gorm.DB, orderId int, parsed *ParsedOrder) error {
	for _, u := range parsed.Units {
		unit := models.ManufacturedUnit{
			OrderId:     orderId,
			Position:    u.Position,
			Description: u.Description,
			WidthMm:     u.WidthMm,
			HeightMm:    u.HeightMm,
			Quantity:    u.Quantity,
		}
		if err := tx.Create(&unit).Error; err != nil {
			return err
		}
	}
	for _, g := range parsed.GlazingItems {
		glazing := models.GlazingItem{
			OrderId:   orderId,
			Position:  g.Position,
			GlassType: g.GlassType,
			WidthMm:   g.WidthMm,
			HeightMm:  g.HeightMm,
			Quantity:  g.Quantity,
		}
		if err := tx.Create(&glazing).Error; err != nil {
			return err
		}
	}
	for _, m := range parsed.MaterialLines {
		req := models.MaterialRequirement{
			OrderId:     orderId,
			ArticleCode: m.ArticleCode,
			Description: m.Description,
			Unit:        m.Unit,
			Quantity:    m.Quantity,
		}
		if err := tx.Create(&req).Error; err != nil {
			return err
		}
	}
	for _, li := range parsed.LineItems {
		item := models.OrderLineItem{
			OrderId:     orderId,
			ArticleCode: li.ArticleCode,
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			TotalPrice:  li.UnitPrice.Mul(li.Quantity),
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
	}
	return nil
}
