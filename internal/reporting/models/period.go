package models

import (
	"strings"
	"time"

	id "esgledger/pkg/domain"
	dErrors "esgledger/pkg/domain-errors"
)

// PeriodMode selects the depth of the disclosure framework used by a period.
type PeriodMode string

const (
	PeriodModeSimplified PeriodMode = "simplified"
	PeriodModeExtended   PeriodMode = "extended"
)

// ParsePeriodMode validates a mode string. Empty input is rejected; callers
// that allow inheritance check for empty before parsing.
func ParsePeriodMode(s string) (PeriodMode, error) {
	m := PeriodMode(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid period mode %q: must be simplified or extended", s)
	}
	return m, nil
}

func (m PeriodMode) IsValid() bool {
	switch m {
	case PeriodModeSimplified, PeriodModeExtended:
		return true
	}
	return false
}

func (m PeriodMode) String() string { return string(m) }

// ReportingPeriod is a time-boxed container of report sections.
//
// Invariants:
//   - Name is non-empty and at most 200 characters
//   - StartDate is strictly before EndDate
//   - A locked period is never mutated; it can only be superseded
//   - SourcePeriodID is set only for periods produced by rollover
type ReportingPeriod struct {
	ID             id.PeriodID       `json:"id"`
	OrganizationID id.OrganizationID `json:"organization_id"`
	Name           string            `json:"name"`
	StartDate      time.Time         `json:"start_date"`
	EndDate        time.Time         `json:"end_date"`
	Mode           PeriodMode        `json:"mode"`
	Scope          string            `json:"scope,omitempty"`
	Locked         bool              `json:"locked"`
	IntegrityHash  string            `json:"integrity_hash,omitempty"`
	SourcePeriodID *id.PeriodID      `json:"source_period_id,omitempty"`
	CreatedBy      id.UserID         `json:"created_by"`
	CreatedAt      time.Time         `json:"created_at"`
}

// NewReportingPeriod constructs a period, enforcing name and date invariants.
func NewReportingPeriod(
	periodID id.PeriodID,
	orgID id.OrganizationID,
	name string,
	start, end time.Time,
	mode PeriodMode,
	scope string,
	createdBy id.UserID,
	now time.Time,
) (*ReportingPeriod, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "period name cannot be empty")
	}
	if len(name) > 200 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "period name must be 200 characters or less")
	}
	if start.IsZero() || end.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "period start and end dates are required")
	}
	if !start.Before(end) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "period start date must be before end date")
	}
	if !mode.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "invalid period mode %q", mode)
	}
	return &ReportingPeriod{
		ID:             periodID,
		OrganizationID: orgID,
		Name:           name,
		StartDate:      start,
		EndDate:        end,
		Mode:           mode,
		Scope:          strings.TrimSpace(scope),
		CreatedBy:      createdBy,
		CreatedAt:      now,
	}, nil
}
