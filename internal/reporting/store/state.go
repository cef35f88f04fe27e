package store

import (
	"maps"
	"slices"
	"strings"

	"esgledger/internal/reporting/models"
	rollover "esgledger/internal/rollover/models"
	id "esgledger/pkg/domain"
	"esgledger/pkg/platform/sentinel"
)

// periodIndex keeps insertion order so graphs load deterministically.
type periodIndex struct {
	sections    []id.SectionID
	dataPoints  []id.DataPointID
	gaps        []id.GapID
	assumptions []id.AssumptionID
	plans       []id.PlanID
	actions     []id.ActionID
	evidence    []id.EvidenceID
}

func (p *periodIndex) clone() *periodIndex {
	return &periodIndex{
		sections:    slices.Clone(p.sections),
		dataPoints:  slices.Clone(p.dataPoints),
		gaps:        slices.Clone(p.gaps),
		assumptions: slices.Clone(p.assumptions),
		plans:       slices.Clone(p.plans),
		actions:     slices.Clone(p.actions),
		evidence:    slices.Clone(p.evidence),
	}
}

type auditRecord struct {
	log *rollover.RolloverAuditLog
	rec *rollover.RolloverReconciliation
}

// state is one consistent version of the in-memory database. Stored entities
// are never mutated in place, so two versions may share pointers.
type state struct {
	periods     map[id.PeriodID]*models.ReportingPeriod
	sections    map[id.SectionID]*models.ReportSection
	dataPoints  map[id.DataPointID]*models.DataPoint
	gaps        map[id.GapID]*models.Gap
	assumptions map[id.AssumptionID]*models.Assumption
	plans       map[id.PlanID]*models.RemediationPlan
	actions     map[id.ActionID]*models.RemediationAction
	evidence    map[id.EvidenceID]*models.Evidence
	index       map[id.PeriodID]*periodIndex
	history     map[id.DataPointID][]*models.GapStatusHistoryEntry
	rules       []*models.ValidationRule
	audits      map[id.OperationID]auditRecord
}

func newState() *state {
	return &state{
		periods:     make(map[id.PeriodID]*models.ReportingPeriod),
		sections:    make(map[id.SectionID]*models.ReportSection),
		dataPoints:  make(map[id.DataPointID]*models.DataPoint),
		gaps:        make(map[id.GapID]*models.Gap),
		assumptions: make(map[id.AssumptionID]*models.Assumption),
		plans:       make(map[id.PlanID]*models.RemediationPlan),
		actions:     make(map[id.ActionID]*models.RemediationAction),
		evidence:    make(map[id.EvidenceID]*models.Evidence),
		index:       make(map[id.PeriodID]*periodIndex),
		history:     make(map[id.DataPointID][]*models.GapStatusHistoryEntry),
		audits:      make(map[id.OperationID]auditRecord),
	}
}

func (s *state) clone() *state {
	c := &state{
		periods:     maps.Clone(s.periods),
		sections:    maps.Clone(s.sections),
		dataPoints:  maps.Clone(s.dataPoints),
		gaps:        maps.Clone(s.gaps),
		assumptions: maps.Clone(s.assumptions),
		plans:       maps.Clone(s.plans),
		actions:     maps.Clone(s.actions),
		evidence:    maps.Clone(s.evidence),
		index:       make(map[id.PeriodID]*periodIndex, len(s.index)),
		history:     make(map[id.DataPointID][]*models.GapStatusHistoryEntry, len(s.history)),
		rules:       slices.Clone(s.rules),
		audits:      maps.Clone(s.audits),
	}
	for k, v := range s.index {
		c.index[k] = v.clone()
	}
	for k, v := range s.history {
		c.history[k] = slices.Clone(v)
	}
	return c
}

func (s *state) findPeriod(periodID id.PeriodID) (*models.ReportingPeriod, error) {
	p, ok := s.periods[periodID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *state) periodNameExists(orgID id.OrganizationID, name string) bool {
	name = strings.TrimSpace(name)
	for _, p := range s.periods {
		if p.OrganizationID == orgID && strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

func (s *state) loadGraph(periodID id.PeriodID) (*models.PeriodGraph, error) {
	period, err := s.findPeriod(periodID)
	if err != nil {
		return nil, err
	}
	idx := s.index[periodID]
	g := &models.PeriodGraph{Period: period}
	if idx == nil {
		return g, nil
	}
	for _, k := range idx.sections {
		sec := *s.sections[k]
		g.Sections = append(g.Sections, &sec)
	}
	for _, k := range idx.dataPoints {
		g.DataPoints = append(g.DataPoints, s.dataPoints[k].Clone())
	}
	for _, k := range idx.gaps {
		g.Gaps = append(g.Gaps, cloneGap(s.gaps[k]))
	}
	for _, k := range idx.assumptions {
		g.Assumptions = append(g.Assumptions, cloneAssumption(s.assumptions[k]))
	}
	for _, k := range idx.plans {
		p := *s.plans[k]
		g.Plans = append(g.Plans, &p)
	}
	for _, k := range idx.actions {
		a := *s.actions[k]
		g.Actions = append(g.Actions, &a)
	}
	for _, k := range idx.evidence {
		e := *s.evidence[k]
		g.Evidence = append(g.Evidence, &e)
	}
	return g, nil
}

func (s *state) periodIndexFor(periodID id.PeriodID) (*periodIndex, error) {
	if _, ok := s.periods[periodID]; !ok {
		return nil, sentinel.ErrNotFound
	}
	idx, ok := s.index[periodID]
	if !ok {
		idx = &periodIndex{}
		s.index[periodID] = idx
	}
	return idx, nil
}

func (s *state) sectionPeriod(sectionID id.SectionID) (*periodIndex, error) {
	sec, ok := s.sections[sectionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.periodIndexFor(sec.PeriodID)
}

func (s *state) createPeriod(p *models.ReportingPeriod) error {
	if _, ok := s.periods[p.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if s.periodNameExists(p.OrganizationID, p.Name) {
		return sentinel.ErrAlreadyUsed
	}
	cp := *p
	s.periods[p.ID] = &cp
	s.index[p.ID] = &periodIndex{}
	return nil
}

func (s *state) createSection(sec *models.ReportSection) error {
	if _, ok := s.sections[sec.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	idx, err := s.periodIndexFor(sec.PeriodID)
	if err != nil {
		return err
	}
	cp := *sec
	s.sections[sec.ID] = &cp
	idx.sections = append(idx.sections, sec.ID)
	return nil
}

func (s *state) updateSection(sec *models.ReportSection) error {
	existing, ok := s.sections[sec.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if existing.PeriodID != sec.PeriodID {
		return sentinel.ErrConflict
	}
	cp := *sec
	s.sections[sec.ID] = &cp
	return nil
}

func (s *state) createDataPoint(dp *models.DataPoint) error {
	if _, ok := s.dataPoints[dp.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	idx, err := s.sectionPeriod(dp.SectionID)
	if err != nil {
		return err
	}
	s.dataPoints[dp.ID] = dp.Clone()
	idx.dataPoints = append(idx.dataPoints, dp.ID)
	return nil
}

func (s *state) updateDataPoint(dp *models.DataPoint, expected models.GapStatus) error {
	existing, ok := s.dataPoints[dp.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if existing.GapStatus != expected {
		return sentinel.ErrConflict
	}
	s.dataPoints[dp.ID] = dp.Clone()
	return nil
}

func (s *state) findDataPoint(dataPointID id.DataPointID) (*models.DataPoint, error) {
	dp, ok := s.dataPoints[dataPointID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return dp.Clone(), nil
}

func (s *state) createGap(g *models.Gap) error {
	if _, ok := s.gaps[g.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	idx, err := s.sectionPeriod(g.SectionID)
	if err != nil {
		return err
	}
	s.gaps[g.ID] = cloneGap(g)
	idx.gaps = append(idx.gaps, g.ID)
	return nil
}

func (s *state) createAssumption(a *models.Assumption) error {
	if _, ok := s.assumptions[a.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	idx, err := s.sectionPeriod(a.SectionID)
	if err != nil {
		return err
	}
	s.assumptions[a.ID] = cloneAssumption(a)
	idx.assumptions = append(idx.assumptions, a.ID)
	return nil
}

func (s *state) createPlan(p *models.RemediationPlan) error {
	if _, ok := s.plans[p.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	idx, err := s.sectionPeriod(p.SectionID)
	if err != nil {
		return err
	}
	cp := *p
	s.plans[p.ID] = &cp
	idx.plans = append(idx.plans, p.ID)
	return nil
}

func (s *state) createAction(a *models.RemediationAction) error {
	if _, ok := s.actions[a.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	plan, ok := s.plans[a.PlanID]
	if !ok {
		return sentinel.ErrNotFound
	}
	idx, err := s.sectionPeriod(plan.SectionID)
	if err != nil {
		return err
	}
	cp := *a
	s.actions[a.ID] = &cp
	idx.actions = append(idx.actions, a.ID)
	return nil
}

func (s *state) createEvidence(e *models.Evidence) error {
	if _, ok := s.evidence[e.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	idx, err := s.sectionPeriod(e.SectionID)
	if err != nil {
		return err
	}
	cp := *e
	s.evidence[e.ID] = &cp
	idx.evidence = append(idx.evidence, e.ID)
	return nil
}

func (s *state) findEvidence(evidenceID id.EvidenceID) (*models.Evidence, error) {
	e, ok := s.evidence[evidenceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *state) appendHistory(entry *models.GapStatusHistoryEntry) error {
	if _, ok := s.dataPoints[entry.DataPointID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *entry
	if entry.EstimateSnapshot != nil {
		snap := *entry.EstimateSnapshot
		cp.EstimateSnapshot = &snap
	}
	s.history[entry.DataPointID] = append(s.history[entry.DataPointID], &cp)
	return nil
}

func (s *state) listHistory(dataPointID id.DataPointID) []*models.GapStatusHistoryEntry {
	entries := s.history[dataPointID]
	out := make([]*models.GapStatusHistoryEntry, 0, len(entries))
	for _, e := range entries {
		cp := *e
		out = append(out, &cp)
	}
	return out
}

func (s *state) listValidationRules(dataType string) []*models.ValidationRule {
	var out []*models.ValidationRule
	for _, r := range s.rules {
		if r.DataType == dataType {
			out = append(out, r)
		}
	}
	return out
}

func (s *state) saveRolloverAudit(log *rollover.RolloverAuditLog, rec *rollover.RolloverReconciliation) error {
	if _, ok := s.audits[log.OperationID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	l := *log
	r := *rec
	s.audits[log.OperationID] = auditRecord{log: &l, rec: &r}
	return nil
}

func (s *state) findRolloverAudit(operationID id.OperationID) (*rollover.RolloverAuditLog, *rollover.RolloverReconciliation, error) {
	a, ok := s.audits[operationID]
	if !ok {
		return nil, nil, sentinel.ErrNotFound
	}
	l := *a.log
	r := *a.rec
	return &l, &r, nil
}

func cloneGap(g *models.Gap) *models.Gap {
	cp := *g
	if g.DataPointID != nil {
		v := *g.DataPointID
		cp.DataPointID = &v
	}
	return &cp
}

func cloneAssumption(a *models.Assumption) *models.Assumption {
	cp := *a
	cp.DataPointIDs = slices.Clone(a.DataPointIDs)
	return &cp
}
