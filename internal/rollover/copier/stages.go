package copier

import (
	"context"
	"errors"
	"time"

	reporting "esgledger/internal/reporting/models"
	"esgledger/internal/reporting/store"
	"esgledger/internal/rollover/mapping"
	"esgledger/internal/rollover/models"
	id "esgledger/pkg/domain"
	dErrors "esgledger/pkg/domain-errors"
	"esgledger/pkg/platform/sentinel"
)

type runState struct {
	in      Input
	w       store.Writer
	now     time.Time
	content map[id.SectionID]*reporting.SectionContent
	ids     idPlan
	results []pairResult
}

// idPlan pre-assigns target ids so cross-section links resolve without
// workers sharing state. It is read-only once built.
type idPlan struct {
	dataPoints map[id.DataPointID]id.DataPointID
	gaps       map[id.GapID]id.GapID
	reset      map[id.DataPointID]bool
}

func planIDs(in Input, content map[id.SectionID]*reporting.SectionContent) idPlan {
	p := idPlan{
		dataPoints: make(map[id.DataPointID]id.DataPointID),
		gaps:       make(map[id.GapID]id.GapID),
		reset:      make(map[id.DataPointID]bool),
	}
	for _, pair := range in.Pairs {
		c, ok := content[pair.Source.ID]
		if !ok {
			continue
		}
		if in.Options.CopyDisclosures {
			for _, g := range c.Gaps {
				p.gaps[g.ID] = id.NewGapID()
			}
		}
		if in.Options.CopyDataValues {
			for _, dp := range c.DataPoints {
				p.dataPoints[dp.ID] = id.NewDataPointID()
				if in.Rules.RuleFor(dp.Type) == models.RuleReset {
					p.reset[dp.ID] = true
				}
			}
		}
	}
	return p
}

// linkDataPoint maps a source data point link into the target period. Links
// survive only when gaps and assumptions are carried forward.
func (r *runState) linkDataPoint(src *id.DataPointID) *id.DataPointID {
	if src == nil || !r.in.Options.CarryForwardGapsAndAssumptions {
		return nil
	}
	next, ok := r.ids.dataPoints[*src]
	if !ok {
		return nil
	}
	return &next
}

func (r *runState) checkOwner(ctx context.Context, entity models.EntityType, entityID, title string, owner id.UserID) error {
	if r.in.Owners == nil || owner.IsNil() {
		return nil
	}
	return r.in.Owners.Check(ctx, entity, entityID, title, owner)
}

func (r *runState) copyStructure(ctx context.Context, i int, p mapping.Pair) error {
	target := *p.Target
	target.Title = p.Source.Title
	target.Description = p.Source.Description
	target.OwnerID = p.Source.OwnerID
	target.Order = p.Source.Order
	srcID := p.Source.ID
	target.SourceSectionID = &srcID

	if err := r.w.UpdateSection(ctx, &target); err != nil {
		return writeErr(err, "section")
	}
	if err := r.checkOwner(ctx, models.EntitySection, target.ID.String(), target.Title, target.OwnerID); err != nil {
		return err
	}
	r.results[i].sections++
	return nil
}

func (r *runState) copyDisclosures(ctx context.Context, i int, p mapping.Pair) error {
	c, ok := r.content[p.Source.ID]
	if !ok {
		return nil
	}
	res := &r.results[i]

	for _, g := range c.Gaps {
		if err := ctx.Err(); err != nil {
			return err
		}
		srcID := g.ID
		gap := &reporting.Gap{
			ID:          r.ids.gaps[g.ID],
			SectionID:   p.Target.ID,
			DataPointID: r.linkDataPoint(g.DataPointID),
			Title:       g.Title,
			Description: g.Description,
			Resolved:    g.Resolved,
			OwnerID:     g.OwnerID,
			SourceGapID: &srcID,
		}
		if err := r.w.CreateGap(ctx, gap); err != nil {
			return writeErr(err, "gap")
		}
		if err := r.checkOwner(ctx, models.EntityGap, gap.ID.String(), gap.Title, gap.OwnerID); err != nil {
			return err
		}
		res.gaps++
	}

	for _, a := range c.Assumptions {
		srcID := a.ID
		assumption := &reporting.Assumption{
			ID:                 id.NewAssumptionID(),
			SectionID:          p.Target.ID,
			Title:              a.Title,
			Description:        a.Description,
			Rationale:          a.Rationale,
			ValidUntil:         copyTime(a.ValidUntil),
			OwnerID:            a.OwnerID,
			SourceAssumptionID: &srcID,
		}
		for _, dpID := range a.DataPointIDs {
			if next := r.linkDataPoint(&dpID); next != nil {
				assumption.DataPointIDs = append(assumption.DataPointIDs, *next)
			}
		}
		if err := r.w.CreateAssumption(ctx, assumption); err != nil {
			return writeErr(err, "assumption")
		}
		if err := r.checkOwner(ctx, models.EntityAssumption, assumption.ID.String(), assumption.Title, assumption.OwnerID); err != nil {
			return err
		}
		res.assumptions++
	}

	planIDs := make(map[id.PlanID]id.PlanID, len(c.Plans))
	for _, pl := range c.Plans {
		srcID := pl.ID
		plan := &reporting.RemediationPlan{
			ID:           id.NewPlanID(),
			SectionID:    p.Target.ID,
			Title:        pl.Title,
			TargetPeriod: pl.TargetPeriod,
			OwnerID:      pl.OwnerID,
			Status:       pl.Status,
			SourcePlanID: &srcID,
		}
		if pl.GapID != nil {
			if next, ok := r.ids.gaps[*pl.GapID]; ok {
				plan.GapID = &next
			}
		}
		if err := r.w.CreatePlan(ctx, plan); err != nil {
			return writeErr(err, "remediation plan")
		}
		if err := r.checkOwner(ctx, models.EntityRemediationPlan, plan.ID.String(), plan.Title, plan.OwnerID); err != nil {
			return err
		}
		planIDs[pl.ID] = plan.ID
		res.plans++
	}

	for _, a := range c.Actions {
		planID, ok := planIDs[a.PlanID]
		if !ok {
			continue
		}
		srcID := a.ID
		action := &reporting.RemediationAction{
			ID:             id.NewActionID(),
			PlanID:         planID,
			Title:          a.Title,
			DueDate:        r.in.Options.ShiftDueDate(a.DueDate),
			AssigneeID:     a.AssigneeID,
			Completed:      a.Completed,
			SourceActionID: &srcID,
		}
		if err := r.w.CreateAction(ctx, action); err != nil {
			return writeErr(err, "remediation action")
		}
		if err := r.checkOwner(ctx, models.EntityRemediationAction, action.ID.String(), action.Title, action.AssigneeID); err != nil {
			return err
		}
		res.actions++
	}
	return nil
}

func (r *runState) copyDataValues(ctx context.Context, i int, p mapping.Pair) error {
	c, ok := r.content[p.Source.ID]
	if !ok {
		return nil
	}
	res := &r.results[i]
	for _, src := range c.DataPoints {
		if err := ctx.Err(); err != nil {
			return err
		}
		rule := r.in.Rules.RuleFor(src.Type)
		dp := r.newDataPoint(src, p.Target.ID, rule)
		if err := r.w.CreateDataPoint(ctx, dp); err != nil {
			return writeErr(err, "data point")
		}
		if rule == models.RuleReset {
			if entry := gapstatusReset(dp, src.GapStatus, r.in.PerformedBy, r.now); entry != nil {
				if err := r.w.AppendHistory(ctx, entry); err != nil {
					return writeErr(err, "gap status history")
				}
				res.resets++
			}
		}
		if err := r.checkOwner(ctx, models.EntityDataPoint, dp.ID.String(), dp.Title, dp.OwnerID); err != nil {
			return err
		}
		res.dataPoints++
	}
	return nil
}

// newDataPoint applies the resolved rule. Lineage is stamped for every rule.
func (r *runState) newDataPoint(src *reporting.DataPoint, sectionID id.SectionID, rule models.RuleType) *reporting.DataPoint {
	srcPeriod := src.PeriodID
	srcID := src.ID
	stamped := r.now
	actor := r.in.PerformedBy
	dp := &reporting.DataPoint{
		ID:        r.ids.dataPoints[src.ID],
		SectionID: sectionID,
		PeriodID:  r.in.Target.ID,
		Title:     src.Title,
		Type:      src.Type,
		Unit:      src.Unit,
		OwnerID:   src.OwnerID,
		Lineage: reporting.Lineage{
			SourcePeriodID:      &srcPeriod,
			SourceDataPointID:   &srcID,
			RolloverTimestamp:   &stamped,
			RolloverPerformedBy: &actor,
		},
		CreatedAt: r.now,
		UpdatedAt: r.now,
	}

	switch rule {
	case models.RuleReset:
		dp.ReviewStatus = reporting.ReviewStatusDraft
		dp.GapStatus = reporting.GapStatusMissing
	case models.RuleCopyAsDraft:
		copyContent(dp, src)
		dp.ReviewStatus = reporting.ReviewStatusDraft
	default:
		copyContent(dp, src)
	}
	return dp
}

func copyContent(dst, src *reporting.DataPoint) {
	dst.Value = src.Value
	dst.Content = src.Content
	dst.ReviewStatus = src.ReviewStatus
	dst.GapStatus = src.GapStatus
	dst.EstimateType = src.EstimateType
	dst.EstimateMethod = src.EstimateMethod
	dst.ConfidenceLevel = src.ConfidenceLevel
	if src.PreviousEstimateSnapshot != nil {
		snap := *src.PreviousEstimateSnapshot
		dst.PreviousEstimateSnapshot = &snap
	}
}

func (r *runState) copyAttachments(ctx context.Context, i int, p mapping.Pair) error {
	c, ok := r.content[p.Source.ID]
	if !ok {
		return nil
	}
	res := &r.results[i]
	for _, e := range c.Evidence {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev := &reporting.Evidence{
			ID:         id.NewEvidenceID(),
			SectionID:  p.Target.ID,
			FileName:   e.FileName,
			StorageKey: e.StorageKey,
			Checksum:   e.Checksum,
			UploadedBy: e.UploadedBy,
		}
		if e.DataPointID != nil {
			if r.ids.reset[*e.DataPointID] {
				continue
			}
			if next, ok := r.ids.dataPoints[*e.DataPointID]; ok {
				ev.DataPointID = &next
			}
		}
		srcID := e.ID
		ev.SourceEvidenceID = &srcID
		if err := r.w.CreateEvidence(ctx, ev); err != nil {
			return writeErr(err, "evidence")
		}
		res.evidence++
	}
	return nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func writeErr(err error, what string) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(err, dErrors.CodeConflict, what+" already exists in target period")
	case dErrors.GetCode(err) != dErrors.CodeInternal:
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write "+what)
	}
}
