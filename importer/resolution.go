package importer

import (
	"fmt"

	"bitbucket.org/mmdatafocus/production_backend/models"
	"bitbucket.org/mmdatafocus/production_backend/utils"
	"gorm.io/gorm"
)

// resolutionTarget is the outcome of executing a resolution inside the apply
// transaction: which existing order (if any) absorbs the incoming data, and
// which order number it superseded.
type resolutionTarget struct {
	Order          *models.ProductionOrder
	ReplacedNumber string
}

// executeResolution performs the destructive half of a resolution: it picks
// the target order, deletes its dependents (full-replace semantics) and
// rewrites its order number when the incoming identifier differs. Must run
// inside the apply transaction; ActionCancel never reaches this point.
func executeResolution(tx *gorm.DB, res Resolution, incomingNumber string) (*resolutionTarget, error) {
	incomingNumber = utils.NormalizeOrderNumber(incomingNumber)

	switch res.Action {
	case models.ActionReplaceBase:
		base, _, _ := utils.SplitOrderNumber(incomingNumber)
		target := res.TargetOrderNumber
		if target == "" {
			target = base
		}
		return replaceOrder(tx, target, incomingNumber)

	case models.ActionReplaceVariant:
		target := res.TargetOrderNumber
		if target == "" {
			target = incomingNumber
		}
		return replaceOrder(tx, target, incomingNumber)

	case models.ActionKeepBoth, models.ActionAddNew, "":
		// The incoming data is written under its own identifier. When that
		// exact identifier already exists this is a re-import of the same
		// order: absorb it with full-replace semantics instead of violating
		// the one-order-per-identifier invariant.
		existing, err := models.GetOrderByNumber(tx, incomingNumber)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return &resolutionTarget{}, nil
		}
		if err := models.DeleteOrderDependents(tx, existing.ID); err != nil {
			return nil, err
		}
		return &resolutionTarget{Order: existing}, nil

	default:
		return nil, utils.NewValidationError("unsupported_resolution", fmt.Sprintf("unsupported resolution action %q", res.Action), nil)
	}
}

func replaceOrder(tx *gorm.DB, targetNumber string, incomingNumber string) (*resolutionTarget, error) {
	target, err := models.GetOrderByNumber(tx, targetNumber)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, utils.NewNotFoundError("order", targetNumber)
	}

	if err := models.DeleteOrderDependents(tx, target.ID); err != nil {
		return nil, err
	}

	result := &resolutionTarget{Order: target}
	if target.OrderNumber != incomingNumber {
		// Never silently overwrite an unrelated order on rewrite.
		taken, terr := models.GetOrderByNumber(tx, incomingNumber)
		if terr != nil {
			return nil, terr
		}
		if taken != nil && taken.ID != target.ID {
			return nil, utils.NewConflictError(
				fmt.Sprintf("order number %s is already taken by another order", incomingNumber), "")
		}
		result.ReplacedNumber = target.OrderNumber
		target.OrderNumber = incomingNumber
		if uerr := tx.Model(&models.ProductionOrder{}).Where("id = ?", target.ID).
			Update("order_number", incomingNumber).Error; uerr != nil {
			if models.IsDuplicateKeyErr(uerr) || models.IsLockConflictErr(uerr) {
				// A concurrent import claimed the number between the check
				// above and the rewrite.
				return nil, utils.NewConflictError(
					fmt.Sprintf("order number %s is already taken by another order", incomingNumber), "")
			}
			return nil, uerr
		}
	}
	return result, nil
}
