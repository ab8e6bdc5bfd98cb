package importer

import (
	"bitbucket.org/mmdatafocus/production_backend/models"
	"bitbucket.org/mmdatafocus/production_backend/utils"
	"gorm.io/gorm"
)

// DetectConflict classifies an incoming order number against the persisted
// orders. Returns nil when no conflict is possible: the number carries no
// variant suffix, or neither the exact number nor its base exists yet.
//
// Equal structural counts yield SuggestionReplaceBase (presumed re-export of
// the same physical order); any inequality forces SuggestionManual and is
// never applied silently.
func DetectConflict(db *gorm.DB, incomingNumber string, incoming StructuralCounts) (*ConflictDecision, error) {
	incomingNumber = utils.NormalizeOrderNumber(incomingNumber)
	base, _, hasSuffix := utils.SplitOrderNumber(incomingNumber)
	if !hasSuffix {
		return nil, nil
	}

	// A persisted exact variant is its own conflict kind, compared against
	// that variant's counts rather than the base's.
	exact, err := models.GetOrderByNumber(db, incomingNumber)
	if err != nil {
		return nil, err
	}
	if exact != nil {
		decision := &ConflictDecision{
			Kind:                models.ConflictKindExactVariant,
			IncomingOrderNumber: incomingNumber,
			BaseOrderNumber:     base,
			ExistingOrderNumber: exact.OrderNumber,
			ExistingCounts:      StructuralCounts{UnitCount: exact.UnitCount, GlazingCount: exact.GlazingCount},
			IncomingCounts:      incoming,
		}
		baseOrder, berr := models.GetOrderByNumber(db, base)
		if berr != nil {
			return nil, berr
		}
		decision.BaseExists = baseOrder != nil
		decision.Suggestion = suggestFor(decision.ExistingCounts, incoming)
		return decision, nil
	}

	baseOrder, err := models.GetOrderByNumber(db, base)
	if err != nil {
		return nil, err
	}
	if baseOrder == nil {
		return nil, nil
	}

	return &ConflictDecision{
		Kind:                models.ConflictKindBaseOrder,
		IncomingOrderNumber: incomingNumber,
		BaseOrderNumber:     base,
		BaseExists:          true,
		ExistingOrderNumber: baseOrder.OrderNumber,
		ExistingCounts:      StructuralCounts{UnitCount: baseOrder.UnitCount, GlazingCount: baseOrder.GlazingCount},
		IncomingCounts:      incoming,
		Suggestion:          suggestFor(StructuralCounts{UnitCount: baseOrder.UnitCount, GlazingCount: baseOrder.GlazingCount}, incoming),
	}, nil
}

func suggestFor(existing, incoming StructuralCounts) models.ConflictSuggestion {
	if existing.Equal(incoming) {
		return models.SuggestionReplaceBase
	}
	return models.SuggestionManual
}
