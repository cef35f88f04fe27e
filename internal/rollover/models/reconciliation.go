package models

import (
	"time"

	reporting "esgledger/internal/reporting/models"
	id "esgledger/pkg/domain"
)

// MappingMethod records how a source section found its target.
type MappingMethod string

const (
	MappingAutomatic MappingMethod = "automatic"
	MappingManual    MappingMethod = "manual"
)

// Unmapped reasons.
const (
	ReasonNoStableIdentifier    = "no stable identifier"
	ReasonManualTargetNotFound  = "manual target not found"
	ReasonCodeNotInTarget       = "catalog code not in target catalog"
	ReasonDuplicateTargetCode   = "duplicate target catalog code"
	ReasonTargetAlreadyAssigned = "target section already mapped"
)

// Suggested actions.
const (
	ActionManualMappingOrCode = "create manual mapping or add catalog code before rollover"
	ActionFixManualMapping    = "correct the manual mapping target code or add it to the catalog"
	ActionReactivateCatalog   = "reactivate the catalog item for the target organization"
	ActionCreateManualMapping = "create a manual mapping to an existing target section"
	ActionResolveDuplicate    = "remove the duplicate catalog item so each code is unique"
)

type MappedItem struct {
	SourceSectionID  id.SectionID  `json:"source_section_id"`
	TargetSectionID  id.SectionID  `json:"target_section_id"`
	CatalogCode      string        `json:"catalog_code"`
	Method           MappingMethod `json:"method"`
	DataPointsCopied int           `json:"data_points_copied"`
}

type UnmappedItem struct {
	SourceSectionID    id.SectionID `json:"source_section_id"`
	Title              string       `json:"title"`
	CatalogCode        string       `json:"catalog_code,omitempty"`
	Reason             string       `json:"reason"`
	SuggestedActions   []string     `json:"suggested_actions"`
	AffectedDataPoints int          `json:"affected_data_points"`
}

// ConfigurationIssue is a catalog problem found while mapping, reported once
// per code.
type ConfigurationIssue struct {
	CatalogCode string `json:"catalog_code"`
	Reason      string `json:"reason"`
}

// RolloverReconciliation is the immutable per-operation mapping report.
type RolloverReconciliation struct {
	OperationID         id.OperationID       `json:"operation_id"`
	TotalSourceSections int                  `json:"total_source_sections"`
	MappedCount         int                  `json:"mapped_count"`
	UnmappedCount       int                  `json:"unmapped_count"`
	MappedItems         []MappedItem         `json:"mapped_items"`
	UnmappedItems       []UnmappedItem       `json:"unmapped_items"`
	ConfigurationIssues []ConfigurationIssue `json:"configuration_issues,omitempty"`
}

// EntityType names the kind of entity an ownership warning refers to.
type EntityType string

const (
	EntitySection           EntityType = "Section"
	EntityDataPoint         EntityType = "DataPoint"
	EntityGap               EntityType = "Gap"
	EntityAssumption        EntityType = "Assumption"
	EntityRemediationPlan   EntityType = "RemediationPlan"
	EntityRemediationAction EntityType = "RemediationAction"
)

// InactiveOwnerWarning flags a carried entity whose owner is no longer
// active. It never blocks a rollover.
type InactiveOwnerWarning struct {
	EntityType  EntityType `json:"entity_type"`
	EntityID    string     `json:"entity_id"`
	EntityTitle string     `json:"entity_title"`
	OwnerID     id.UserID  `json:"owner_id"`
	OwnerName   string     `json:"owner_name,omitempty"`
}

// RolloverAuditLog is the single audit record of one rollover operation.
type RolloverAuditLog struct {
	OperationID            id.OperationID         `json:"operation_id"`
	SourcePeriodID         id.PeriodID            `json:"source_period_id"`
	TargetPeriodID         id.PeriodID            `json:"target_period_id"`
	PerformedBy            id.UserID              `json:"performed_by"`
	PerformedAt            time.Time              `json:"performed_at"`
	Options                RolloverOptions        `json:"options"`
	RuleOverrides          []RolloverRuleOverride `json:"rule_overrides,omitempty"`
	SectionsCopied         int                    `json:"sections_copied"`
	DataPointsCopied       int                    `json:"data_points_copied"`
	GapsCopied             int                    `json:"gaps_copied"`
	AssumptionsCopied      int                    `json:"assumptions_copied"`
	RemediationPlansCopied int                    `json:"remediation_plans_copied"`
	EvidenceCopied         int                    `json:"evidence_copied"`
	SourceSnapshotHash     string                 `json:"source_snapshot_hash"`
}

// RolloverResult is returned only for a fully committed rollover.
type RolloverResult struct {
	Success               bool                       `json:"success"`
	TargetPeriod          *reporting.ReportingPeriod `json:"target_period"`
	AuditLog              *RolloverAuditLog          `json:"audit_log"`
	Reconciliation        *RolloverReconciliation    `json:"reconciliation"`
	InactiveOwnerWarnings []InactiveOwnerWarning     `json:"inactive_owner_warnings"`
}

// PreviewResult describes what a rollover would do without writing anything.
type PreviewResult struct {
	SourcePeriodID     id.PeriodID             `json:"source_period_id"`
	Reconciliation     *RolloverReconciliation `json:"reconciliation"`
	Rules              []ResolvedRule          `json:"rules"`
	SourceSnapshotHash string                  `json:"source_snapshot_hash"`
}

// RolloverRequest carries every input of a rollover call.
type RolloverRequest struct {
	SourcePeriodID id.PeriodID
	Target         TargetPeriodSpec
	Options        RolloverOptions
	RuleOverrides  []RolloverRuleOverride
	ManualMappings []ManualSectionMapping
	PerformedBy    id.UserID
}
