package models

import (
	"strings"
	"time"

	id "esgledger/pkg/domain"
	dErrors "esgledger/pkg/domain-errors"
)

// GapStatus tracks how complete a data point's value is.
type GapStatus string

const (
	GapStatusMissing   GapStatus = "missing"
	GapStatusEstimated GapStatus = "estimated"
	GapStatusProvided  GapStatus = "provided"
)

func ParseGapStatus(s string) (GapStatus, error) {
	g := GapStatus(strings.ToLower(strings.TrimSpace(s)))
	if !g.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid gap status %q", s)
	}
	return g, nil
}

func (g GapStatus) IsValid() bool {
	switch g {
	case GapStatusMissing, GapStatusEstimated, GapStatusProvided:
		return true
	}
	return false
}

func (g GapStatus) String() string { return string(g) }

// ReviewStatus is the editorial state of a data point.
type ReviewStatus string

const (
	ReviewStatusDraft    ReviewStatus = "draft"
	ReviewStatusInReview ReviewStatus = "in_review"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

func (r ReviewStatus) IsValid() bool {
	switch r {
	case ReviewStatusDraft, ReviewStatusInReview, ReviewStatusApproved, ReviewStatusRejected:
		return true
	}
	return false
}

// EstimateType describes how an estimated value was derived.
type EstimateType string

const (
	EstimateTypePoint        EstimateType = "point"
	EstimateTypeRange        EstimateType = "range"
	EstimateTypeProxy        EstimateType = "proxy"
	EstimateTypeExtrapolated EstimateType = "extrapolated"
)

func ParseEstimateType(s string) (EstimateType, error) {
	e := EstimateType(strings.ToLower(strings.TrimSpace(s)))
	if !e.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid estimate type %q", s)
	}
	return e, nil
}

func (e EstimateType) IsValid() bool {
	switch e {
	case EstimateTypePoint, EstimateTypeRange, EstimateTypeProxy, EstimateTypeExtrapolated:
		return true
	}
	return false
}

// ConfidenceLevel grades the reliability of an estimate.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

func ParseConfidenceLevel(s string) (ConfidenceLevel, error) {
	c := ConfidenceLevel(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid confidence level %q", s)
	}
	return c, nil
}

func (c ConfidenceLevel) IsValid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	}
	return false
}

// EstimateSnapshot preserves the estimate that was in force before a data
// point left the estimated state.
type EstimateSnapshot struct {
	EstimateType    EstimateType    `json:"estimate_type"`
	EstimateMethod  string          `json:"estimate_method"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level"`
	EstimatedValue  string          `json:"estimated_value,omitempty"`
	CapturedAt      time.Time       `json:"captured_at"`
}

// Lineage links a rolled-over data point to exactly one source.
type Lineage struct {
	SourcePeriodID      *id.PeriodID    `json:"source_period_id,omitempty"`
	SourceDataPointID   *id.DataPointID `json:"source_data_point_id,omitempty"`
	RolloverTimestamp   *time.Time      `json:"rollover_timestamp,omitempty"`
	RolloverPerformedBy *id.UserID      `json:"rollover_performed_by,omitempty"`
}

// HasSource reports whether lineage fields are stamped.
func (l Lineage) HasSource() bool {
	return l.SourceDataPointID != nil && l.SourcePeriodID != nil
}

// DataPoint is a single reported value inside a section.
//
// Invariants:
//   - GapStatus is one of missing, estimated, provided
//   - estimate fields are populated only while GapStatus is estimated
//   - lineage, once stamped, is never rewritten
type DataPoint struct {
	ID           id.DataPointID `json:"id"`
	SectionID    id.SectionID   `json:"section_id"`
	PeriodID     id.PeriodID    `json:"period_id"`
	Title        string         `json:"title"`
	Type         string         `json:"type"`
	Value        string         `json:"value,omitempty"`
	Content      string         `json:"content,omitempty"`
	Unit         string         `json:"unit,omitempty"`
	OwnerID      id.UserID      `json:"owner_id,omitempty"`
	ReviewStatus ReviewStatus   `json:"review_status"`
	GapStatus    GapStatus      `json:"gap_status"`

	EstimateType             EstimateType      `json:"estimate_type,omitempty"`
	EstimateMethod           string            `json:"estimate_method,omitempty"`
	ConfidenceLevel          ConfidenceLevel   `json:"confidence_level,omitempty"`
	PreviousEstimateSnapshot *EstimateSnapshot `json:"previous_estimate_snapshot,omitempty"`

	Lineage

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (d *DataPoint) Clone() *DataPoint {
	if d == nil {
		return nil
	}
	c := *d
	if d.PreviousEstimateSnapshot != nil {
		snap := *d.PreviousEstimateSnapshot
		c.PreviousEstimateSnapshot = &snap
	}
	if d.SourcePeriodID != nil {
		v := *d.SourcePeriodID
		c.SourcePeriodID = &v
	}
	if d.SourceDataPointID != nil {
		v := *d.SourceDataPointID
		c.SourceDataPointID = &v
	}
	if d.RolloverTimestamp != nil {
		v := *d.RolloverTimestamp
		c.RolloverTimestamp = &v
	}
	if d.RolloverPerformedBy != nil {
		v := *d.RolloverPerformedBy
		c.RolloverPerformedBy = &v
	}
	return &c
}

// CurrentEstimate captures the live estimate fields.
func (d *DataPoint) CurrentEstimate(now time.Time) *EstimateSnapshot {
	return &EstimateSnapshot{
		EstimateType:    d.EstimateType,
		EstimateMethod:  d.EstimateMethod,
		ConfidenceLevel: d.ConfidenceLevel,
		EstimatedValue:  d.Value,
		CapturedAt:      now,
	}
}

// ClearEstimate removes the live estimate fields.
func (d *DataPoint) ClearEstimate() {
	d.EstimateType = ""
	d.EstimateMethod = ""
	d.ConfidenceLevel = ""
}
