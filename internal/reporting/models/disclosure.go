package models

import (
	"time"

	id "esgledger/pkg/domain"
)

// Gap records a known shortfall in the disclosure for a section, optionally
// tied to one data point.
type Gap struct {
	ID          id.GapID        `json:"id"`
	SectionID   id.SectionID    `json:"section_id"`
	DataPointID *id.DataPointID `json:"data_point_id,omitempty"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Resolved    bool            `json:"resolved"`
	OwnerID     id.UserID       `json:"owner_id,omitempty"`
	SourceGapID *id.GapID       `json:"source_gap_id,omitempty"`
}

// Assumption documents a premise behind reported or estimated values.
type Assumption struct {
	ID                 id.AssumptionID  `json:"id"`
	SectionID          id.SectionID     `json:"section_id"`
	DataPointIDs       []id.DataPointID `json:"data_point_ids,omitempty"`
	Title              string           `json:"title"`
	Description        string           `json:"description,omitempty"`
	Rationale          string           `json:"rationale,omitempty"`
	ValidUntil         *time.Time       `json:"valid_until,omitempty"`
	OwnerID            id.UserID        `json:"owner_id,omitempty"`
	SourceAssumptionID *id.AssumptionID `json:"source_assumption_id,omitempty"`
}

// PlanStatus is the progress state of a remediation plan.
type PlanStatus string

const (
	PlanStatusPlanned    PlanStatus = "planned"
	PlanStatusInProgress PlanStatus = "in_progress"
	PlanStatusCompleted  PlanStatus = "completed"
)

func (p PlanStatus) IsValid() bool {
	switch p {
	case PlanStatusPlanned, PlanStatusInProgress, PlanStatusCompleted:
		return true
	}
	return false
}

// RemediationPlan describes how a gap will be closed. TargetPeriod is free
// text naming the period the plan expects to close in.
type RemediationPlan struct {
	ID           id.PlanID    `json:"id"`
	SectionID    id.SectionID `json:"section_id"`
	GapID        *id.GapID    `json:"gap_id,omitempty"`
	Title        string       `json:"title"`
	TargetPeriod string       `json:"target_period,omitempty"`
	OwnerID      id.UserID    `json:"owner_id,omitempty"`
	Status       PlanStatus   `json:"status"`
	SourcePlanID *id.PlanID   `json:"source_plan_id,omitempty"`
}

// RemediationAction is a dated step of a plan.
type RemediationAction struct {
	ID             id.ActionID  `json:"id"`
	PlanID         id.PlanID    `json:"plan_id"`
	Title          string       `json:"title"`
	DueDate        *time.Time   `json:"due_date,omitempty"`
	AssigneeID     id.UserID    `json:"assignee_id,omitempty"`
	Completed      bool         `json:"completed"`
	SourceActionID *id.ActionID `json:"source_action_id,omitempty"`
}

// Evidence references an uploaded file. Rolled-over evidence points at the
// original StorageKey; file bytes are never duplicated.
type Evidence struct {
	ID               id.EvidenceID   `json:"id"`
	SectionID        id.SectionID    `json:"section_id"`
	DataPointID      *id.DataPointID `json:"data_point_id,omitempty"`
	FileName         string          `json:"file_name"`
	StorageKey       string          `json:"storage_key"`
	Checksum         string          `json:"checksum,omitempty"`
	UploadedBy       id.UserID       `json:"uploaded_by,omitempty"`
	SourceEvidenceID *id.EvidenceID  `json:"source_evidence_id,omitempty"`
}

// SectionCatalogItem is an organization-level definition from which period
// sections are seeded.
type SectionCatalogItem struct {
	ID             id.CatalogItemID  `json:"id"`
	OrganizationID id.OrganizationID `json:"organization_id"`
	Code           string            `json:"code"`
	Title          string            `json:"title"`
	Description    string            `json:"description,omitempty"`
	Order          int               `json:"order"`
	Active         bool              `json:"active"`
	Deprecated     bool              `json:"deprecated"`
}

// Usable reports whether the item may seed a new period.
func (c SectionCatalogItem) Usable() bool {
	return c.Active && !c.Deprecated
}

// GapStatusHistoryEntry is an immutable record of one executed transition.
type GapStatusHistoryEntry struct {
	ID               id.HistoryEntryID `json:"id"`
	DataPointID      id.DataPointID    `json:"data_point_id"`
	PeriodID         id.PeriodID       `json:"period_id"`
	From             GapStatus         `json:"from"`
	To               GapStatus         `json:"to"`
	ChangedBy        id.UserID         `json:"changed_by"`
	ChangedAt        time.Time         `json:"changed_at"`
	Note             string            `json:"note,omitempty"`
	EstimateSnapshot *EstimateSnapshot `json:"estimate_snapshot,omitempty"`
}
