package models

import (
	"regexp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	id "esgledger/pkg/domain"
	dErrors "esgledger/pkg/domain-errors"
)

// ValidationRuleType names the check a ValidationRule performs.
type ValidationRuleType string

const (
	RuleRequired      ValidationRuleType = "required"
	RuleNumericRange  ValidationRuleType = "numeric_range"
	RulePattern       ValidationRuleType = "pattern"
	RuleAllowedValues ValidationRuleType = "allowed_values"
)

// RuleParameters is implemented by each typed parameter set. Check returns
// nil when value satisfies the rule.
type RuleParameters interface {
	Type() ValidationRuleType
	Check(value string) error
}

type RequiredParams struct{}

func (RequiredParams) Type() ValidationRuleType { return RuleRequired }

func (RequiredParams) Check(value string) error {
	if strings.TrimSpace(value) == "" {
		return dErrors.New(dErrors.CodeValidation, "value is required")
	}
	return nil
}

// NumericRangeParams bounds a decimal value. Nil bounds are open.
type NumericRangeParams struct {
	Min *decimal.Decimal
	Max *decimal.Decimal
}

func (NumericRangeParams) Type() ValidationRuleType { return RuleNumericRange }

func (p NumericRangeParams) Check(value string) error {
	v, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return dErrors.Newf(dErrors.CodeValidation, "value %q is not numeric", value)
	}
	if p.Min != nil && v.LessThan(*p.Min) {
		return dErrors.Newf(dErrors.CodeValidation, "value %s is below minimum %s", v, p.Min)
	}
	if p.Max != nil && v.GreaterThan(*p.Max) {
		return dErrors.Newf(dErrors.CodeValidation, "value %s exceeds maximum %s", v, p.Max)
	}
	return nil
}

type PatternParams struct {
	re *regexp.Regexp
}

func (PatternParams) Type() ValidationRuleType { return RulePattern }

func (p PatternParams) Regex() string { return p.re.String() }

func (p PatternParams) Check(value string) error {
	if !p.re.MatchString(value) {
		return dErrors.Newf(dErrors.CodeValidation, "value %q does not match pattern %s", value, p.re)
	}
	return nil
}

type AllowedValuesParams struct {
	Values []string
}

func (AllowedValuesParams) Type() ValidationRuleType { return RuleAllowedValues }

func (p AllowedValuesParams) Check(value string) error {
	if !slices.Contains(p.Values, value) {
		return dErrors.Newf(dErrors.CodeValidation, "value %q is not one of %s", value, strings.Join(p.Values, ", "))
	}
	return nil
}

// ValidationRule constrains data point values of one data type.
type ValidationRule struct {
	ID         id.RuleID
	DataType   string
	Parameters RuleParameters
}

func NewRequiredRule(dataType string) (*ValidationRule, error) {
	return newValidationRule(dataType, RequiredParams{})
}

func NewNumericRangeRule(dataType string, min, max *decimal.Decimal) (*ValidationRule, error) {
	if min == nil && max == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "numeric range needs at least one bound")
	}
	if min != nil && max != nil && min.GreaterThan(*max) {
		return nil, dErrors.Newf(dErrors.CodeValidation, "numeric range minimum %s exceeds maximum %s", min, max)
	}
	return newValidationRule(dataType, NumericRangeParams{Min: min, Max: max})
}

func NewPatternRule(dataType, expr string) (*ValidationRule, error) {
	if expr == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "pattern cannot be empty")
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid pattern")
	}
	return newValidationRule(dataType, PatternParams{re: re})
}

func NewAllowedValuesRule(dataType string, values []string) (*ValidationRule, error) {
	if len(values) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "allowed values cannot be empty")
	}
	return newValidationRule(dataType, AllowedValuesParams{Values: slices.Clone(values)})
}

func newValidationRule(dataType string, params RuleParameters) (*ValidationRule, error) {
	dataType = strings.TrimSpace(dataType)
	if dataType == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "validation rule data type cannot be empty")
	}
	return &ValidationRule{ID: id.NewRuleID(), DataType: dataType, Parameters: params}, nil
}

// ValidateValue applies every rule whose data type matches dataType and
// returns the first violation.
func ValidateValue(rules []*ValidationRule, dataType, value string) error {
	for _, rule := range rules {
		if rule == nil || rule.DataType != dataType {
			continue
		}
		if err := rule.Parameters.Check(value); err != nil {
			return err
		}
	}
	return nil
}
