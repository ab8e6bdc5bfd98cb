package models

// ImportStatus is the lifecycle state of one ImportRecord. Only forward
// transitions are written: pending -> processing -> completed|error, and
// pending -> rejected. An error record may re-enter processing when the
// import is approved again; completed and rejected are final.
type ImportStatus string

const (
	ImportStatusPending    ImportStatus = "pending"
	ImportStatusProcessing ImportStatus = "processing"
	ImportStatusCompleted  ImportStatus = "completed"
	ImportStatusError      ImportStatus = "error"
	ImportStatusRejected   ImportStatus = "rejected"
)

type ImportFileKind string

const (
	FileKindMaterialUsage ImportFileKind = "material-usage"
	FileKindPriceDocument ImportFileKind = "price-document"
	FileKindUnknown       ImportFileKind = "unknown"
)

// ConflictKind distinguishes a variant colliding with its base order from a
// variant colliding with an already persisted exact variant.
type ConflictKind string

const (
	ConflictKindBaseOrder    ConflictKind = "base-order"
	ConflictKindExactVariant ConflictKind = "exact-variant"
)

// ConflictSuggestion is the system proposal attached to a detected conflict.
type ConflictSuggestion string

const (
	SuggestionReplaceBase ConflictSuggestion = "replace_base"
	SuggestionKeepBoth    ConflictSuggestion = "keep_both"
	SuggestionManual      ConflictSuggestion = "manual"
)

// ResolutionAction is the operator- or system-chosen way to resolve a conflict.
type ResolutionAction string

const (
	ActionAddNew         ResolutionAction = "add_new"
	ActionReplaceBase    ResolutionAction = "replace_base"
	ActionReplaceVariant ResolutionAction = "replace_variant"
	ActionKeepBoth       ResolutionAction = "keep_both"
	ActionCancel         ResolutionAction = "cancel"
)

// AutoImportStatus is the outcome of automatic price-document processing.
type AutoImportStatus string

const (
	AutoImportApplied      AutoImportStatus = "applied"
	AutoImportPendingOrder AutoImportStatus = "queued-pending-order"
	AutoImportDuplicate    AutoImportStatus = "duplicate-flagged"
	AutoImportParseError   AutoImportStatus = "parse-error"
)

// Outbox publish statuses for ImportEventRecord.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// Per-file outcomes inside a folder batch result.
const (
	BatchFileSuccess = "success"
	BatchFileSkipped = "skipped"
	BatchFileError   = "error"
)
