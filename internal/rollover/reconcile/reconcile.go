// Package reconcile assembles the read-only reconciliation report and audit
// log of one rollover from the mapper and copier outputs.
package reconcile

import (
	"slices"
	"strconv"
	"time"

	reporting "esgledger/internal/reporting/models"
	"esgledger/internal/rollover/copier"
	"esgledger/internal/rollover/mapping"
	"esgledger/internal/rollover/models"
	id "esgledger/pkg/domain"
)

// Report builds the reconciliation. copied may be nil for previews, in which
// case per-section data point counts are the source counts.
func Report(operationID id.OperationID, sources int, mapped mapping.Result, copied *copier.Output, sourceCounts map[id.SectionID]int) *models.RolloverReconciliation {
	rec := &models.RolloverReconciliation{
		OperationID:         operationID,
		TotalSourceSections: sources,
		MappedCount:         len(mapped.Pairs),
		UnmappedCount:       len(mapped.Unmapped),
		MappedItems:         make([]models.MappedItem, 0, len(mapped.Pairs)),
		UnmappedItems:       make([]models.UnmappedItem, 0, len(mapped.Unmapped)),
		ConfigurationIssues: slices.Clone(mapped.Issues),
	}
	for _, p := range mapped.Pairs {
		count := sourceCounts[p.Source.ID]
		if copied != nil {
			count = copied.DataPointsBySource[p.Source.ID]
		}
		rec.MappedItems = append(rec.MappedItems, models.MappedItem{
			SourceSectionID:  p.Source.ID,
			TargetSectionID:  p.Target.ID,
			CatalogCode:      p.Target.CatalogCode,
			Method:           p.Method,
			DataPointsCopied: count,
		})
	}
	for _, u := range mapped.Unmapped {
		u.SuggestedActions = slices.Clone(u.SuggestedActions)
		rec.UnmappedItems = append(rec.UnmappedItems, u)
	}
	return rec
}

// AuditInput carries the identifying fields of the audit record.
type AuditInput struct {
	OperationID    id.OperationID
	SourcePeriodID id.PeriodID
	Target         *reporting.ReportingPeriod
	PerformedBy    id.UserID
	PerformedAt    time.Time
	Options        models.RolloverOptions
	Overrides      []models.RolloverRuleOverride
	SnapshotHash   string
}

// AuditLog is the single audit entry of a committed rollover.
func AuditLog(in AuditInput, copied *copier.Output) *models.RolloverAuditLog {
	log := &models.RolloverAuditLog{
		OperationID:        in.OperationID,
		SourcePeriodID:     in.SourcePeriodID,
		TargetPeriodID:     in.Target.ID,
		PerformedBy:        in.PerformedBy,
		PerformedAt:        in.PerformedAt,
		Options:            in.Options,
		RuleOverrides:      slices.Clone(in.Overrides),
		SourceSnapshotHash: in.SnapshotHash,
	}
	if copied != nil {
		log.SectionsCopied = copied.SectionsCopied
		log.DataPointsCopied = copied.DataPointsCopied
		log.GapsCopied = copied.GapsCopied
		log.AssumptionsCopied = copied.AssumptionsCopied
		log.RemediationPlansCopied = copied.PlansCopied
		log.EvidenceCopied = copied.EvidenceCopied
	}
	return log
}

// DataPointCounts counts data points per section of g.
func DataPointCounts(g *reporting.PeriodGraph) map[id.SectionID]int {
	counts := make(map[id.SectionID]int, len(g.Sections))
	for _, dp := range g.DataPoints {
		counts[dp.SectionID]++
	}
	return counts
}

// Details flattens the audit log counts for the compliance event.
func Details(log *models.RolloverAuditLog, rec *models.RolloverReconciliation, warnings int) map[string]string {
	return map[string]string{
		"target_period_id":         log.TargetPeriodID.String(),
		"sections_copied":          itoa(log.SectionsCopied),
		"data_points_copied":       itoa(log.DataPointsCopied),
		"gaps_copied":              itoa(log.GapsCopied),
		"assumptions_copied":       itoa(log.AssumptionsCopied),
		"remediation_plans_copied": itoa(log.RemediationPlansCopied),
		"evidence_copied":          itoa(log.EvidenceCopied),
		"mapped_sections":          itoa(rec.MappedCount),
		"unmapped_sections":        itoa(rec.UnmappedCount),
		"inactive_owner_warnings":  itoa(warnings),
		"source_snapshot_hash":     log.SourceSnapshotHash,
	}
}

func itoa(n int) string { return strconv.Itoa(n) }
