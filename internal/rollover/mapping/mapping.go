// Package mapping matches source-period sections to target-period sections.
//
// Manual mappings are applied first, then exact catalog code matches. The
// mapper never creates target sections and never maps two sources onto the
// same target.
package mapping

import (
	reporting "esgledger/internal/reporting/models"
	"esgledger/internal/rollover/models"
	id "esgledger/pkg/domain"
)

// Pair is one mapped source/target section.
type Pair struct {
	Source *reporting.ReportSection
	Target *reporting.ReportSection
	Method models.MappingMethod
}

// Input collects everything Map needs. DataPointCounts feeds the affected
// counts of unmapped items.
type Input struct {
	Sources         []*reporting.ReportSection
	Targets         []*reporting.ReportSection
	Manual          []models.ManualSectionMapping
	DataPointCounts map[id.SectionID]int
}

// Result is ordered by source section order.
type Result struct {
	Pairs    []Pair
	Unmapped []models.UnmappedItem
	Issues   []models.ConfigurationIssue
}

// TargetIndex returns the first target section per catalog code, and a
// configuration issue for each code that appears more than once.
func TargetIndex(targets []*reporting.ReportSection) (map[string]*reporting.ReportSection, []models.ConfigurationIssue) {
	index := make(map[string]*reporting.ReportSection, len(targets))
	reported := make(map[string]bool)
	var issues []models.ConfigurationIssue
	for _, t := range targets {
		if !t.HasCatalogCode() {
			continue
		}
		if _, dup := index[t.CatalogCode]; dup {
			if !reported[t.CatalogCode] {
				reported[t.CatalogCode] = true
				issues = append(issues, models.ConfigurationIssue{
					CatalogCode: t.CatalogCode,
					Reason:      models.ReasonDuplicateTargetCode,
				})
			}
			continue
		}
		index[t.CatalogCode] = t
	}
	return index, issues
}

type outcome struct {
	pair     *Pair
	unmapped *models.UnmappedItem
}

// Map is pure: identical input yields identical output.
func Map(in Input) Result {
	index, issues := TargetIndex(in.Targets)
	manual := make(map[string]string, len(in.Manual))
	for _, m := range in.Manual {
		if _, ok := manual[m.SourceCatalogCode]; !ok {
			manual[m.SourceCatalogCode] = m.TargetCatalogCode
		}
	}

	outcomes := make([]outcome, len(in.Sources))
	assigned := make(map[id.SectionID]bool, len(in.Targets))

	unmapped := func(src *reporting.ReportSection, reason string, actions ...string) *models.UnmappedItem {
		return &models.UnmappedItem{
			SourceSectionID:    src.ID,
			Title:              src.Title,
			CatalogCode:        src.CatalogCode,
			Reason:             reason,
			SuggestedActions:   actions,
			AffectedDataPoints: in.DataPointCounts[src.ID],
		}
	}

	// manual mappings claim targets before automatic matching
	for i, src := range in.Sources {
		if !src.HasCatalogCode() {
			continue
		}
		targetCode, ok := manual[src.CatalogCode]
		if !ok {
			continue
		}
		target, found := index[targetCode]
		switch {
		case !found:
			outcomes[i].unmapped = unmapped(src, models.ReasonManualTargetNotFound, models.ActionFixManualMapping)
		case assigned[target.ID]:
			outcomes[i].unmapped = unmapped(src, models.ReasonTargetAlreadyAssigned, models.ActionFixManualMapping)
		default:
			assigned[target.ID] = true
			outcomes[i].pair = &Pair{Source: src, Target: target, Method: models.MappingManual}
		}
	}

	for i, src := range in.Sources {
		if outcomes[i].pair != nil || outcomes[i].unmapped != nil {
			continue
		}
		if !src.HasCatalogCode() {
			outcomes[i].unmapped = unmapped(src, models.ReasonNoStableIdentifier, models.ActionManualMappingOrCode)
			continue
		}
		target, found := index[src.CatalogCode]
		switch {
		case !found:
			outcomes[i].unmapped = unmapped(src, models.ReasonCodeNotInTarget,
				models.ActionReactivateCatalog, models.ActionCreateManualMapping)
		case assigned[target.ID]:
			outcomes[i].unmapped = unmapped(src, models.ReasonTargetAlreadyAssigned, models.ActionCreateManualMapping)
		default:
			assigned[target.ID] = true
			outcomes[i].pair = &Pair{Source: src, Target: target, Method: models.MappingAutomatic}
		}
	}

	res := Result{Issues: issues}
	for _, o := range outcomes {
		if o.pair != nil {
			res.Pairs = append(res.Pairs, *o.pair)
			continue
		}
		res.Unmapped = append(res.Unmapped, *o.unmapped)
	}
	return res
}

// MissingManualTargets returns manual target codes absent from the catalog
// code set, in input order.
func MissingManualTargets(manual []models.ManualSectionMapping, codes map[string]bool) []string {
	var missing []string
	for _, m := range manual {
		if !codes[m.TargetCatalogCode] {
			missing = append(missing, m.TargetCatalogCode)
		}
	}
	return missing
}
