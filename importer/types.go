package importer

import (
	"fmt"

	"bitbucket.org/mmdatafocus/production_backend/models"
	"github.com/shopspring/decimal"
)

// StructuralCounts are the comparable scalar summaries used to decide whether
// two variants are the same physical order re-sent.
type StructuralCounts struct {
	UnitCount    int `json:"unit_count"`
	GlazingCount int `json:"glazing_count"`
}

func (c StructuralCounts) Equal(other StructuralCounts) bool {
	return c.UnitCount == other.UnitCount && c.GlazingCount == other.GlazingCount
}

type ParsedUnit struct {
	Position    int
	Description string
	WidthMm     int
	HeightMm    int
	Quantity    decimal.Decimal
}

type ParsedGlazing struct {
	Position  int
	GlassType string
	WidthMm   int
	HeightMm  int
	Quantity  decimal.Decimal
}

type ParsedMaterialLine struct {
	ArticleCode string
	Description string
	Unit        string
	Quantity    decimal.Decimal
}

type ParsedLineItem struct {
	ArticleCode string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// ParsedOrder is the parser boundary shape: pure data, no storage references.
type ParsedOrder struct {
	OrderNumber   string
	CustomerName  string
	Units         []ParsedUnit
	GlazingItems  []ParsedGlazing
	MaterialLines []ParsedMaterialLine
	LineItems     []ParsedLineItem
}

func (p *ParsedOrder) Counts() StructuralCounts {
	return StructuralCounts{
		UnitCount:    len(p.Units),
		GlazingCount: len(p.GlazingItems),
	}
}

// ParseError is a structured extraction failure with the offending line.
type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s line %d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("parse %s: %s", e.File, e.Message)
}

// ConflictDecision describes one detected variant conflict. It is ephemeral:
// nothing is persisted unless the chosen Action is applied.
type ConflictDecision struct {
	Kind                models.ConflictKind       `json:"kind"`
	IncomingOrderNumber string                    `json:"incoming_order_number"`
	BaseOrderNumber     string                    `json:"base_order_number"`
	BaseExists          bool                      `json:"base_exists"`
	ExistingOrderNumber string                    `json:"existing_order_number"`
	ExistingCounts      StructuralCounts          `json:"existing_counts"`
	IncomingCounts      StructuralCounts          `json:"incoming_counts"`
	Suggestion          models.ConflictSuggestion `json:"suggestion"`

	// Filled by the operator, empty until decided.
	Action            models.ResolutionAction `json:"action,omitempty"`
	TargetOrderNumber string                  `json:"target_order_number,omitempty"`
}

// DefaultAction maps the suggestion to the concrete resolution the system
// would auto-apply. Manual suggestions have no default.
func (d *ConflictDecision) DefaultAction() (models.ResolutionAction, bool) {
	if d.Suggestion != models.SuggestionReplaceBase {
		return "", false
	}
	if d.Kind == models.ConflictKindExactVariant {
		return models.ActionReplaceVariant, true
	}
	return models.ActionReplaceBase, true
}

// Resolution is the action actually executed against the incoming data.
type Resolution struct {
	Action            models.ResolutionAction
	TargetOrderNumber string
}

type ApplyResult struct {
	OrderId             int                     `json:"order_id"`
	OrderNumber         string                  `json:"order_number"`
	Created             bool                    `json:"created"`
	AppliedAction       models.ResolutionAction `json:"applied_action"`
	ReplacedOrderNumber string                  `json:"replaced_order_number,omitempty"`
	UnitCount           int                     `json:"unit_count"`
	GlazingCount        int                     `json:"glazing_count"`
}

// AutoImportOutcome is the terminal or semi-terminal branch automatic
// price-document processing ended in.
type AutoImportOutcome struct {
	Status     models.AutoImportStatus `json:"status"`
	Message    string                  `json:"message,omitempty"`
	DocumentId int                     `json:"document_id,omitempty"`
}

type PreviewResult struct {
	Record       *models.ImportRecord `json:"record"`
	Data         *ParsedOrder         `json:"data"`
	Summary      StructuralCounts     `json:"summary"`
	ConflictInfo *ConflictDecision    `json:"conflict_info,omitempty"`
}

type BatchFileResult struct {
	FileName    string `json:"file_name"`
	Status      string `json:"status"` // success | skipped | error
	Reason      string `json:"reason,omitempty"`
	OrderNumber string `json:"order_number,omitempty"`
	ImportId    int    `json:"import_id,omitempty"`
}

type BatchSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

type BatchResult struct {
	DeliveryId int               `json:"delivery_id"`
	Results    []BatchFileResult `json:"results"`
	Summary    BatchSummary      `json:"summary"`
	ArchivedTo string            `json:"archived_to,omitempty"`
}
