package models

import (
	"cmp"
	"slices"
	"strconv"

	id "esgledger/pkg/domain"
	"esgledger/pkg/platform/integrity"
)

// PeriodGraph is a read-only snapshot of a period and everything it owns.
type PeriodGraph struct {
	Period      *ReportingPeriod
	Sections    []*ReportSection
	DataPoints  []*DataPoint
	Gaps        []*Gap
	Assumptions []*Assumption
	Plans       []*RemediationPlan
	Actions     []*RemediationAction
	Evidence    []*Evidence
}

// SectionContent groups the entities of one section.
type SectionContent struct {
	DataPoints  []*DataPoint
	Gaps        []*Gap
	Assumptions []*Assumption
	Plans       []*RemediationPlan
	Actions     []*RemediationAction
	Evidence    []*Evidence
}

// BySection indexes the graph's entities by owning section. Remediation
// actions follow their plan's section.
func (g *PeriodGraph) BySection() map[id.SectionID]*SectionContent {
	out := make(map[id.SectionID]*SectionContent, len(g.Sections))
	get := func(sid id.SectionID) *SectionContent {
		c, ok := out[sid]
		if !ok {
			c = &SectionContent{}
			out[sid] = c
		}
		return c
	}
	for _, s := range g.Sections {
		get(s.ID)
	}
	for _, dp := range g.DataPoints {
		c := get(dp.SectionID)
		c.DataPoints = append(c.DataPoints, dp)
	}
	for _, gap := range g.Gaps {
		c := get(gap.SectionID)
		c.Gaps = append(c.Gaps, gap)
	}
	for _, a := range g.Assumptions {
		c := get(a.SectionID)
		c.Assumptions = append(c.Assumptions, a)
	}
	planSection := make(map[id.PlanID]id.SectionID, len(g.Plans))
	for _, p := range g.Plans {
		planSection[p.ID] = p.SectionID
		c := get(p.SectionID)
		c.Plans = append(c.Plans, p)
	}
	for _, a := range g.Actions {
		sid, ok := planSection[a.PlanID]
		if !ok {
			continue
		}
		c := get(sid)
		c.Actions = append(c.Actions, a)
	}
	for _, e := range g.Evidence {
		c := get(e.SectionID)
		c.Evidence = append(c.Evidence, e)
	}
	return out
}

// DataTypes returns the distinct data point types in the graph, sorted.
func (g *PeriodGraph) DataTypes() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, dp := range g.DataPoints {
		if _, ok := seen[dp.Type]; ok {
			continue
		}
		seen[dp.Type] = struct{}{}
		out = append(out, dp.Type)
	}
	slices.Sort(out)
	return out
}

// Fingerprint digests the graph content in a stable order so two loads of an
// unchanged period produce the same value.
func (g *PeriodGraph) Fingerprint() string {
	d := integrity.New()
	if g.Period != nil {
		d.Section("period").
			Field("id", g.Period.ID.String()).
			Field("name", g.Period.Name)
	}
	sections := slices.Clone(g.Sections)
	slices.SortFunc(sections, func(a, b *ReportSection) int { return cmp.Compare(a.ID.String(), b.ID.String()) })
	for _, s := range sections {
		d.Section("section").
			Field("id", s.ID.String()).
			Field("code", s.CatalogCode).
			Field("title", s.Title).
			Field("owner", s.OwnerID.String())
	}
	dps := slices.Clone(g.DataPoints)
	slices.SortFunc(dps, func(a, b *DataPoint) int { return cmp.Compare(a.ID.String(), b.ID.String()) })
	for _, dp := range dps {
		d.Section("data_point").
			Field("id", dp.ID.String()).
			Field("section", dp.SectionID.String()).
			Field("type", dp.Type).
			Field("value", dp.Value).
			Field("content", dp.Content).
			Field("gap_status", dp.GapStatus.String()).
			Field("review_status", string(dp.ReviewStatus))
	}
	gaps := slices.Clone(g.Gaps)
	slices.SortFunc(gaps, func(a, b *Gap) int { return cmp.Compare(a.ID.String(), b.ID.String()) })
	for _, gap := range gaps {
		d.Section("gap").
			Field("id", gap.ID.String()).
			Field("title", gap.Title).
			Field("resolved", strconv.FormatBool(gap.Resolved))
	}
	assumptions := slices.Clone(g.Assumptions)
	slices.SortFunc(assumptions, func(a, b *Assumption) int { return cmp.Compare(a.ID.String(), b.ID.String()) })
	for _, a := range assumptions {
		d.Section("assumption").
			Field("id", a.ID.String()).
			Field("title", a.Title)
	}
	plans := slices.Clone(g.Plans)
	slices.SortFunc(plans, func(a, b *RemediationPlan) int { return cmp.Compare(a.ID.String(), b.ID.String()) })
	for _, p := range plans {
		d.Section("plan").
			Field("id", p.ID.String()).
			Field("title", p.Title).
			Field("status", string(p.Status))
	}
	actions := slices.Clone(g.Actions)
	slices.SortFunc(actions, func(a, b *RemediationAction) int { return cmp.Compare(a.ID.String(), b.ID.String()) })
	for _, a := range actions {
		d.Section("action").
			Field("id", a.ID.String()).
			Field("title", a.Title).
			Field("completed", strconv.FormatBool(a.Completed))
	}
	evidence := slices.Clone(g.Evidence)
	slices.SortFunc(evidence, func(a, b *Evidence) int { return cmp.Compare(a.ID.String(), b.ID.String()) })
	for _, e := range evidence {
		d.Section("evidence").
			Field("id", e.ID.String()).
			Field("storage_key", e.StorageKey).
			Field("checksum", e.Checksum)
	}
	return d.Sum()
}
