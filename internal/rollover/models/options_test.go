package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "esgledger/pkg/domain-errors"
)

func TestRolloverOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    RolloverOptions
		wantErr bool
	}{
		{name: "defaults", opts: DefaultOptions()},
		{name: "nothing copied", opts: RolloverOptions{}},
		{name: "structure only", opts: RolloverOptions{CopyStructure: true}},
		{name: "full chain", opts: RolloverOptions{CopyStructure: true, CopyDisclosures: true, CopyDataValues: true, CopyAttachments: true, CarryForwardGapsAndAssumptions: true}},
		{name: "attachments without data values", opts: RolloverOptions{CopyStructure: true, CopyDisclosures: true, CopyAttachments: true}, wantErr: true},
		{name: "data values without disclosures", opts: RolloverOptions{CopyStructure: true, CopyDataValues: true}, wantErr: true},
		{name: "disclosures without structure", opts: RolloverOptions{CopyDisclosures: true}, wantErr: true},
		{name: "carry forward without disclosures", opts: RolloverOptions{CopyStructure: true, CarryForwardGapsAndAssumptions: true}, wantErr: true},
		{name: "negative adjustment", opts: RolloverOptions{DueDateAdjustmentDays: -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestShiftDueDate(t *testing.T) {
	due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	shifted := RolloverOptions{DueDateAdjustmentDays: 30}.ShiftDueDate(&due)
	require.NotNil(t, shifted)
	assert.Equal(t, "2025-02-09", shifted.Format("2006-01-02"))
	assert.Equal(t, "2025-01-10", due.Format("2006-01-02"), "source date untouched")

	same := RolloverOptions{}.ShiftDueDate(&due)
	assert.True(t, same.Equal(due))
	assert.NotSame(t, &due, same)

	assert.Nil(t, RolloverOptions{DueDateAdjustmentDays: 5}.ShiftDueDate(nil))
}

func TestTargetPeriodSpecValidate(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	assert.NoError(t, TargetPeriodSpec{Name: "FY2025", StartDate: start, EndDate: end}.Validate())
	assert.Error(t, TargetPeriodSpec{Name: " ", StartDate: start, EndDate: end}.Validate())
	assert.Error(t, TargetPeriodSpec{Name: "FY2025", StartDate: end, EndDate: start}.Validate())
	assert.Error(t, TargetPeriodSpec{Name: "FY2025", StartDate: start, EndDate: end, Mode: "basic"}.Validate())
}

func TestValidateOverridesAndMappings(t *testing.T) {
	assert.NoError(t, ValidateOverrides([]RolloverRuleOverride{{DataType: "kpi", RuleType: RuleReset}, {DataType: "kpi", RuleType: RuleReset}}))
	assert.Error(t, ValidateOverrides([]RolloverRuleOverride{{DataType: "kpi", RuleType: RuleReset}, {DataType: "kpi", RuleType: RuleCopy}}))
	assert.Error(t, ValidateOverrides([]RolloverRuleOverride{{DataType: "kpi", RuleType: "clone"}}))
	assert.Error(t, ValidateOverrides([]RolloverRuleOverride{{RuleType: RuleCopy}}))

	assert.NoError(t, ValidateManualMappings([]ManualSectionMapping{{SourceCatalogCode: "A", TargetCatalogCode: "B"}}))
	assert.Error(t, ValidateManualMappings([]ManualSectionMapping{{SourceCatalogCode: "A"}}))
	assert.Error(t, ValidateManualMappings([]ManualSectionMapping{
		{SourceCatalogCode: "A", TargetCatalogCode: "B"},
		{SourceCatalogCode: "A", TargetCatalogCode: "C"},
	}))

	r, err := ParseRuleType("Copy_As_Draft")
	require.NoError(t, err)
	assert.Equal(t, RuleCopyAsDraft, r)
}
