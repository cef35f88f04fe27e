package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reporting "esgledger/internal/reporting/models"
	"esgledger/internal/rollover/models"
	id "esgledger/pkg/domain"
)

func section(code, title string) *reporting.ReportSection {
	return &reporting.ReportSection{ID: id.NewSectionID(), CatalogCode: code, Title: title}
}

func TestMapScenarioA(t *testing.T) {
	env, soc, adhoc := section("ENV-001", "Env"), section("SOC-002", "Social"), section("", "Ad-hoc")
	tEnv, tSoc := section("ENV-001", "Env"), section("SOC-002", "Social")

	res := Map(Input{
		Sources:         []*reporting.ReportSection{env, soc, adhoc},
		Targets:         []*reporting.ReportSection{tEnv, tSoc},
		DataPointCounts: map[id.SectionID]int{adhoc.ID: 3},
	})

	require.Len(t, res.Pairs, 2)
	assert.Equal(t, tEnv.ID, res.Pairs[0].Target.ID)
	assert.Equal(t, tSoc.ID, res.Pairs[1].Target.ID)
	assert.Equal(t, models.MappingAutomatic, res.Pairs[0].Method)

	require.Len(t, res.Unmapped, 1)
	u := res.Unmapped[0]
	assert.Equal(t, "Ad-hoc", u.Title)
	assert.Equal(t, models.ReasonNoStableIdentifier, u.Reason)
	assert.Equal(t, []string{models.ActionManualMappingOrCode}, u.SuggestedActions)
	assert.Equal(t, 3, u.AffectedDataPoints)
	assert.Empty(t, res.Issues)
}

func TestMapIsDeterministic(t *testing.T) {
	sources := []*reporting.ReportSection{section("A", "a"), section("B", "b"), section("", "c"), section("Z", "z")}
	targets := []*reporting.ReportSection{section("B", "b"), section("A", "a")}
	in := Input{Sources: sources, Targets: targets}

	first := Map(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Map(in))
	}
}

func TestMapManualTakesPrecedence(t *testing.T) {
	src := section("OLD-1", "Legacy")
	auto := section("NEW-1", "Newer")
	tNew := section("NEW-1", "Newer")
	tOld := section("OLD-1", "Legacy")

	res := Map(Input{
		Sources: []*reporting.ReportSection{auto, src},
		Targets: []*reporting.ReportSection{tNew, tOld},
		Manual:  []models.ManualSectionMapping{{SourceCatalogCode: "OLD-1", TargetCatalogCode: "NEW-1"}},
	})

	require.Len(t, res.Pairs, 1)
	assert.Equal(t, src.ID, res.Pairs[0].Source.ID)
	assert.Equal(t, tNew.ID, res.Pairs[0].Target.ID)
	assert.Equal(t, models.MappingManual, res.Pairs[0].Method)

	require.Len(t, res.Unmapped, 1)
	assert.Equal(t, auto.ID, res.Unmapped[0].SourceSectionID)
	assert.Equal(t, models.ReasonTargetAlreadyAssigned, res.Unmapped[0].Reason)
}

func TestMapManualTargetNotFound(t *testing.T) {
	src := section("OLD-1", "Legacy")
	res := Map(Input{
		Sources: []*reporting.ReportSection{src},
		Targets: []*reporting.ReportSection{section("OLD-1", "Legacy")},
		Manual:  []models.ManualSectionMapping{{SourceCatalogCode: "OLD-1", TargetCatalogCode: "MISSING"}},
	})
	assert.Empty(t, res.Pairs)
	require.Len(t, res.Unmapped, 1)
	assert.Equal(t, models.ReasonManualTargetNotFound, res.Unmapped[0].Reason)
}

func TestMapCodeNotInTarget(t *testing.T) {
	res := Map(Input{
		Sources: []*reporting.ReportSection{section("GOV-009", "Deprecated")},
		Targets: []*reporting.ReportSection{section("ENV-001", "Env")},
	})
	require.Len(t, res.Unmapped, 1)
	assert.Equal(t, models.ReasonCodeNotInTarget, res.Unmapped[0].Reason)
	assert.Len(t, res.Unmapped[0].SuggestedActions, 2)
}

func TestMapDuplicateTargetCodes(t *testing.T) {
	src := section("ENV-001", "Env")
	first, second, third := section("ENV-001", "one"), section("ENV-001", "two"), section("ENV-001", "three")

	res := Map(Input{
		Sources: []*reporting.ReportSection{src},
		Targets: []*reporting.ReportSection{first, second, third},
	})
	require.Len(t, res.Pairs, 1)
	assert.Equal(t, first.ID, res.Pairs[0].Target.ID, "first target wins")
	require.Len(t, res.Issues, 1, "duplicate reported once")
	assert.Equal(t, "ENV-001", res.Issues[0].CatalogCode)
}

func TestMapNoCodeAlwaysUnmapped(t *testing.T) {
	for _, manual := range [][]models.ManualSectionMapping{nil, {{SourceCatalogCode: "", TargetCatalogCode: "X"}}} {
		res := Map(Input{
			Sources: []*reporting.ReportSection{section("", "Ad-hoc")},
			Targets: []*reporting.ReportSection{section("", "Blank"), section("X", "x")},
			Manual:  manual,
		})
		require.Len(t, res.Unmapped, 1)
		assert.Equal(t, models.ReasonNoStableIdentifier, res.Unmapped[0].Reason)
	}
}

func TestMissingManualTargets(t *testing.T) {
	missing := MissingManualTargets(
		[]models.ManualSectionMapping{{SourceCatalogCode: "A", TargetCatalogCode: "B"}, {SourceCatalogCode: "C", TargetCatalogCode: "D"}},
		map[string]bool{"B": true},
	)
	assert.Equal(t, []string{"D"}, missing)
}
