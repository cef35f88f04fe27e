package models

import (
	"strings"
	"time"

	id "esgledger/pkg/domain"
	dErrors "esgledger/pkg/domain-errors"
)

// RuleType is the copy policy applied to data points of one data type.
type RuleType string

const (
	RuleCopy        RuleType = "copy"
	RuleReset       RuleType = "reset"
	RuleCopyAsDraft RuleType = "copy_as_draft"
)

func ParseRuleType(s string) (RuleType, error) {
	r := RuleType(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid rollover rule type %q", s)
	}
	return r, nil
}

func (r RuleType) IsValid() bool {
	switch r {
	case RuleCopy, RuleReset, RuleCopyAsDraft:
		return true
	}
	return false
}

func (r RuleType) String() string { return string(r) }

// RuleSource records where a resolved rule came from.
type RuleSource string

const (
	RuleSourceOverride RuleSource = "override"
	RuleSourceRegistry RuleSource = "registry"
	RuleSourceDefault  RuleSource = "default"
)

// RolloverRuleOverride applies to a single rollover call and is never persisted.
type RolloverRuleOverride struct {
	DataType string   `json:"data_type"`
	RuleType RuleType `json:"rule_type"`
}

// DataTypeRolloverRule is one version of the global rule for a data type.
// Only one version per data type is active at a time.
type DataTypeRolloverRule struct {
	ID          id.RuleID `json:"id"`
	DataType    string    `json:"data_type"`
	RuleType    RuleType  `json:"rule_type"`
	Version     int       `json:"version"`
	Active      bool      `json:"active"`
	Description string    `json:"description,omitempty"`
	CreatedBy   id.UserID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// ResolvedRule is the outcome of rule resolution for one data type.
type ResolvedRule struct {
	DataType string     `json:"data_type"`
	RuleType RuleType   `json:"rule_type"`
	Source   RuleSource `json:"source"`
	Version  int        `json:"version,omitempty"`
}

// ValidateOverrides rejects blank data types, unknown rule types and
// conflicting duplicates.
func ValidateOverrides(overrides []RolloverRuleOverride) error {
	seen := make(map[string]RuleType, len(overrides))
	for _, o := range overrides {
		if strings.TrimSpace(o.DataType) == "" {
			return dErrors.New(dErrors.CodeValidation, "rule override data type cannot be empty")
		}
		if !o.RuleType.IsValid() {
			return dErrors.Newf(dErrors.CodeValidation, "invalid rule type %q for data type %q", o.RuleType, o.DataType)
		}
		if prev, ok := seen[o.DataType]; ok && prev != o.RuleType {
			return dErrors.Newf(dErrors.CodeValidation, "conflicting rule overrides for data type %q", o.DataType)
		}
		seen[o.DataType] = o.RuleType
	}
	return nil
}
