package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rollover "esgledger/internal/rollover/models"
	id "esgledger/pkg/domain"
	dErrors "esgledger/pkg/domain-errors"
)

func TestParseOverrides(t *testing.T) {
	got, err := parseOverrides([]string{"kpi=reset", " narrative = copy_as_draft "})
	require.NoError(t, err)
	assert.Equal(t, []rollover.RolloverRuleOverride{
		{DataType: "kpi", RuleType: rollover.RuleReset},
		{DataType: "narrative", RuleType: rollover.RuleCopyAsDraft},
	}, got)

	_, err = parseOverrides([]string{"kpi"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))

	_, err = parseOverrides([]string{"kpi=clone"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestParseMappings(t *testing.T) {
	got, err := parseMappings([]string{"SOC-002=SOC-100"})
	require.NoError(t, err)
	assert.Equal(t, []rollover.ManualSectionMapping{{SourceCatalogCode: "SOC-002", TargetCatalogCode: "SOC-100"}}, got)

	for _, bad := range []string{"SOC-002", "=SOC-100", "SOC-002="} {
		_, err := parseMappings([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestRolloverFlagsRequest(t *testing.T) {
	source := id.NewPeriodID()
	f := rolloverFlags{
		source:      source.String(),
		name:        "FY2025",
		start:       "2025-01-01",
		end:         "2025-12-31",
		actor:       "admin-1",
		structure:   true,
		disclosures: true,
		dueShift:    30,
		overrides:   []string{"kpi=reset"},
	}

	req, err := f.request()
	require.NoError(t, err)
	assert.Equal(t, source, req.SourcePeriodID)
	assert.Equal(t, id.UserID("admin-1"), req.PerformedBy)
	assert.Equal(t, "2025-12-31", req.Target.EndDate.Format(dateLayout))
	assert.Equal(t, rollover.RolloverOptions{CopyStructure: true, CopyDisclosures: true, DueDateAdjustmentDays: 30}, req.Options)
	assert.Len(t, req.RuleOverrides, 1)
	assert.Empty(t, req.ManualMappings)

	f.start = "01/01/2025"
	_, err = f.request()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))

	f.start = "2025-01-01"
	f.source = "nope"
	_, err = f.request()
	assert.Error(t, err)
}
