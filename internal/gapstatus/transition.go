package gapstatus

import (
	"strings"
	"time"

	"esgledger/internal/reporting/models"
	id "esgledger/pkg/domain"
	dErrors "esgledger/pkg/domain-errors"
)

// EstimateFields are required when moving a data point to estimated.
type EstimateFields struct {
	EstimateType    models.EstimateType    `json:"estimate_type"`
	EstimateMethod  string                 `json:"estimate_method"`
	ConfidenceLevel models.ConfidenceLevel `json:"confidence_level"`
}

// Change is the caller-supplied part of a transition.
type Change struct {
	Target     models.GapStatus
	Actor      id.UserID
	Note       string
	Value      string
	EvidenceID *id.EvidenceID
	Estimate   *EstimateFields
}

type edge struct {
	from, to models.GapStatus
}

// Allowed transitions. Anything else is an invalid transition.
var (
	missingToEstimated  = edge{models.GapStatusMissing, models.GapStatusEstimated}
	estimatedToProvided = edge{models.GapStatusEstimated, models.GapStatusProvided}
	missingToProvided   = edge{models.GapStatusMissing, models.GapStatusProvided}
	providedToMissing   = edge{models.GapStatusProvided, models.GapStatusMissing}
	estimatedToMissing  = edge{models.GapStatusEstimated, models.GapStatusMissing}
)

// IsAllowed reports whether from -> to is in the transition table.
func IsAllowed(from, to models.GapStatus) bool {
	switch (edge{from, to}) {
	case missingToEstimated, estimatedToProvided, missingToProvided, providedToMissing, estimatedToMissing:
		return true
	}
	return false
}

// Apply validates c against dp and returns the updated copy plus the history
// entry to append. dp is not modified.
func Apply(dp *models.DataPoint, c Change, now time.Time) (*models.DataPoint, *models.GapStatusHistoryEntry, error) {
	if c.Actor.IsNil() {
		return nil, nil, dErrors.New(dErrors.CodeValidation, "transitioned by is required")
	}
	if !c.Target.IsValid() {
		return nil, nil, dErrors.Newf(dErrors.CodeValidation, "invalid target status %q", c.Target)
	}
	from := dp.GapStatus
	if !IsAllowed(from, c.Target) {
		return nil, nil, dErrors.Newf(dErrors.CodeInvalidTransition, "transition %s -> %s is not allowed", from, c.Target)
	}

	next := dp.Clone()
	next.GapStatus = c.Target
	next.UpdatedAt = now
	entry := &models.GapStatusHistoryEntry{
		ID:          id.NewHistoryEntryID(),
		DataPointID: dp.ID,
		PeriodID:    dp.PeriodID,
		From:        from,
		To:          c.Target,
		ChangedBy:   c.Actor,
		ChangedAt:   now,
		Note:        strings.TrimSpace(c.Note),
	}

	switch (edge{from, c.Target}) {
	case missingToEstimated:
		if err := validateEstimate(c.Estimate); err != nil {
			return nil, nil, err
		}
		next.EstimateType = c.Estimate.EstimateType
		next.EstimateMethod = strings.TrimSpace(c.Estimate.EstimateMethod)
		next.ConfidenceLevel = c.Estimate.ConfidenceLevel
		if v := strings.TrimSpace(c.Value); v != "" {
			next.Value = v
		}
		entry.EstimateSnapshot = next.CurrentEstimate(now)

	case estimatedToProvided:
		value, err := requireValue(c.Value)
		if err != nil {
			return nil, nil, err
		}
		snap := dp.CurrentEstimate(now)
		next.PreviousEstimateSnapshot = snap
		next.ClearEstimate()
		next.Value = value
		entry.EstimateSnapshot = snap

	case missingToProvided:
		value, err := requireValue(c.Value)
		if err != nil {
			return nil, nil, err
		}
		next.Value = value

	case estimatedToMissing:
		if entry.Note == "" {
			return nil, nil, dErrors.New(dErrors.CodeValidation, "change note is required when reopening a data point")
		}
		snap := dp.CurrentEstimate(now)
		next.PreviousEstimateSnapshot = snap
		next.ClearEstimate()
		next.Value = ""
		entry.EstimateSnapshot = snap

	case providedToMissing:
		if entry.Note == "" {
			return nil, nil, dErrors.New(dErrors.CodeValidation, "change note is required when reopening a data point")
		}
		next.Value = ""
	}

	return next, entry, nil
}

// ResetEntry records a rollover reset of a freshly created data point whose
// source carried a non-missing status.
func ResetEntry(dp *models.DataPoint, sourceStatus models.GapStatus, actor id.UserID, now time.Time) *models.GapStatusHistoryEntry {
	return &models.GapStatusHistoryEntry{
		ID:          id.NewHistoryEntryID(),
		DataPointID: dp.ID,
		PeriodID:    dp.PeriodID,
		From:        sourceStatus,
		To:          models.GapStatusMissing,
		ChangedBy:   actor,
		ChangedAt:   now,
		Note:        ResetNote,
	}
}

// ResetNote is the history note written for rollover resets.
const ResetNote = "reset by rollover"

func validateEstimate(e *EstimateFields) error {
	if e == nil {
		return dErrors.New(dErrors.CodeValidation, "estimate type, estimate method and confidence level are required")
	}
	if !e.EstimateType.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "a valid estimate type is required")
	}
	if strings.TrimSpace(e.EstimateMethod) == "" {
		return dErrors.New(dErrors.CodeValidation, "estimate method is required")
	}
	if !e.ConfidenceLevel.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "a valid confidence level is required")
	}
	return nil
}

func requireValue(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", dErrors.New(dErrors.CodeValidation, "value is required to mark a data point provided")
	}
	return v, nil
}
