package store

import (
	"context"

	"esgledger/internal/reporting/models"
)

// WriteGraph inserts every entity of g in dependency order.
func WriteGraph(ctx context.Context, w Writer, g *models.PeriodGraph) error {
	if g.Period != nil {
		if err := w.CreatePeriod(ctx, g.Period); err != nil {
			return err
		}
	}
	for _, s := range g.Sections {
		if err := w.CreateSection(ctx, s); err != nil {
			return err
		}
	}
	for _, dp := range g.DataPoints {
		if err := w.CreateDataPoint(ctx, dp); err != nil {
			return err
		}
	}
	for _, gap := range g.Gaps {
		if err := w.CreateGap(ctx, gap); err != nil {
			return err
		}
	}
	for _, a := range g.Assumptions {
		if err := w.CreateAssumption(ctx, a); err != nil {
			return err
		}
	}
	for _, p := range g.Plans {
		if err := w.CreatePlan(ctx, p); err != nil {
			return err
		}
	}
	for _, a := range g.Actions {
		if err := w.CreateAction(ctx, a); err != nil {
			return err
		}
	}
	for _, e := range g.Evidence {
		if err := w.CreateEvidence(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
