package models

import (
	"strings"
	"time"

	reporting "esgledger/internal/reporting/models"
	dErrors "esgledger/pkg/domain-errors"
)

// RolloverOptions selects which stages of the source graph are carried.
//
// Dependency chain: CopyAttachments => CopyDataValues => CopyDisclosures =>
// CopyStructure, and CarryForwardGapsAndAssumptions => CopyDisclosures.
type RolloverOptions struct {
	CopyStructure                  bool `json:"copy_structure"`
	CopyDisclosures                bool `json:"copy_disclosures"`
	CopyDataValues                 bool `json:"copy_data_values"`
	CopyAttachments                bool `json:"copy_attachments"`
	CarryForwardGapsAndAssumptions bool `json:"carry_forward_gaps_and_assumptions"`
	DueDateAdjustmentDays          int  `json:"due_date_adjustment_days,omitempty"`
}

// DefaultOptions carries structure, disclosures and data values.
func DefaultOptions() RolloverOptions {
	return RolloverOptions{
		CopyStructure:   true,
		CopyDisclosures: true,
		CopyDataValues:  true,
	}
}

// Validate rejects combinations that break the dependency chain. Violations
// are never silently downgraded.
func (o RolloverOptions) Validate() error {
	if o.CopyAttachments && !o.CopyDataValues {
		return dErrors.New(dErrors.CodeValidation, "copy attachments requires copy data values")
	}
	if o.CopyDataValues && !o.CopyDisclosures {
		return dErrors.New(dErrors.CodeValidation, "copy data values requires copy disclosures")
	}
	if o.CopyDisclosures && !o.CopyStructure {
		return dErrors.New(dErrors.CodeValidation, "copy disclosures requires copy structure")
	}
	if o.CarryForwardGapsAndAssumptions && !o.CopyDisclosures {
		return dErrors.New(dErrors.CodeValidation, "carry forward gaps and assumptions requires copy disclosures")
	}
	if o.DueDateAdjustmentDays < 0 {
		return dErrors.New(dErrors.CodeValidation, "due date adjustment days cannot be negative")
	}
	return nil
}

// ShiftDueDate moves a due date forward by the configured number of days.
func (o RolloverOptions) ShiftDueDate(due *time.Time) *time.Time {
	if due == nil {
		return nil
	}
	shifted := *due
	if o.DueDateAdjustmentDays > 0 {
		shifted = shifted.AddDate(0, 0, o.DueDateAdjustmentDays)
	}
	return &shifted
}

// TargetPeriodSpec describes the period a rollover creates. Empty Mode and
// Scope inherit from the source period.
type TargetPeriodSpec struct {
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Mode      string    `json:"mode,omitempty"`
	Scope     string    `json:"scope,omitempty"`
}

// Validate checks name, dates and mode before any lookup happens.
func (t TargetPeriodSpec) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "target period name is required")
	}
	if t.StartDate.IsZero() || t.EndDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "target period start and end dates are required")
	}
	if !t.StartDate.Before(t.EndDate) {
		return dErrors.New(dErrors.CodeValidation, "target period start date must be before end date")
	}
	if t.Mode != "" {
		if _, err := reporting.ParsePeriodMode(t.Mode); err != nil {
			return err
		}
	}
	return nil
}

// ManualSectionMapping overrides automatic matching for one source code.
type ManualSectionMapping struct {
	SourceCatalogCode string `json:"source_catalog_code"`
	TargetCatalogCode string `json:"target_catalog_code"`
}

// ValidateManualMappings rejects blank codes and conflicting duplicates.
func ValidateManualMappings(mappings []ManualSectionMapping) error {
	seen := make(map[string]string, len(mappings))
	for _, m := range mappings {
		if strings.TrimSpace(m.SourceCatalogCode) == "" || strings.TrimSpace(m.TargetCatalogCode) == "" {
			return dErrors.New(dErrors.CodeValidation, "manual mapping codes cannot be empty")
		}
		if prev, ok := seen[m.SourceCatalogCode]; ok && prev != m.TargetCatalogCode {
			return dErrors.Newf(dErrors.CodeValidation, "conflicting manual mappings for source code %q", m.SourceCatalogCode)
		}
		seen[m.SourceCatalogCode] = m.TargetCatalogCode
	}
	return nil
}
