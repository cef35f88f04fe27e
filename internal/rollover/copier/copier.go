// Package copier writes the carried-forward graph of a rollover into the
// target period.
//
// Stages run strictly in order: structure, disclosures, data values,
// attachments. Each stage is skipped when its option is off. Within a stage
// the mapped section pairs are processed by a bounded worker pool; every
// target entity is written by exactly one worker.
package copier

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"esgledger/internal/gapstatus"
	reporting "esgledger/internal/reporting/models"
	"esgledger/internal/reporting/store"
	"esgledger/internal/rollover/mapping"
	"esgledger/internal/rollover/models"
	"esgledger/internal/rollover/rules"
	id "esgledger/pkg/domain"
	dErrors "esgledger/pkg/domain-errors"
)

// Stage names, in execution order.
const (
	StageStructure   = "structure"
	StageDisclosures = "disclosures"
	StageDataValues  = "data_values"
	StageAttachments = "attachments"
)

const defaultWorkers = 4

// OwnerChecker is consulted for every carried entity with an owner. It must
// be safe for concurrent use.
type OwnerChecker interface {
	Check(ctx context.Context, entity models.EntityType, entityID, title string, owner id.UserID) error
}

// Input is everything one copy run needs.
type Input struct {
	Source      *reporting.PeriodGraph
	Target      *reporting.ReportingPeriod
	Pairs       []mapping.Pair
	Options     models.RolloverOptions
	Rules       *rules.Plan
	PerformedBy id.UserID
	Owners      OwnerChecker
}

// Output summarizes what was written.
type Output struct {
	SectionsCopied    int
	DataPointsCopied  int
	GapsCopied        int
	AssumptionsCopied int
	PlansCopied       int
	ActionsCopied     int
	EvidenceCopied    int
	ResetHistory      int
	// DataPointsBySource counts copied data points per source section.
	DataPointsBySource map[id.SectionID]int
}

type Copier struct {
	workers  int
	logger   *slog.Logger
	now      func() time.Time
	observer func(stage string, d time.Duration)
}

type Option func(*Copier)

// WithWorkers bounds the per-stage worker pool.
func WithWorkers(n int) Option {
	return func(c *Copier) {
		if n > 0 {
			c.workers = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Copier) {
		c.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Copier) {
		if now != nil {
			c.now = now
		}
	}
}

// WithStageObserver receives the duration of every executed stage.
func WithStageObserver(fn func(stage string, d time.Duration)) Option {
	return func(c *Copier) {
		c.observer = fn
	}
}

func New(opts ...Option) *Copier {
	c := &Copier{
		workers: defaultWorkers,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// pairResult is written only by the worker that owns the pair.
type pairResult struct {
	sections    int
	dataPoints  int
	gaps        int
	assumptions int
	plans       int
	actions     int
	evidence    int
	resets      int
}

// Copy runs all enabled stages against w. Any error aborts the run; the
// caller's transaction discards partial writes.
func (c *Copier) Copy(ctx context.Context, w store.Writer, in Input) (*Output, error) {
	if in.Source == nil || in.Target == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "copier requires source graph and target period")
	}
	run := &runState{
		in:      in,
		w:       w,
		now:     c.now().UTC(),
		content: in.Source.BySection(),
		results: make([]pairResult, len(in.Pairs)),
	}
	run.ids = planIDs(in, run.content)

	stages := []struct {
		name    string
		enabled bool
		fn      func(ctx context.Context, i int, p mapping.Pair) error
	}{
		{StageStructure, in.Options.CopyStructure, run.copyStructure},
		{StageDisclosures, in.Options.CopyDisclosures, run.copyDisclosures},
		{StageDataValues, in.Options.CopyDataValues, run.copyDataValues},
		{StageAttachments, in.Options.CopyAttachments, run.copyAttachments},
	}
	for _, st := range stages {
		if !st.enabled {
			continue
		}
		start := time.Now()
		if err := c.runStage(ctx, in.Pairs, st.fn); err != nil {
			c.logger.WarnContext(ctx, "rollover copy stage failed",
				"stage", st.name,
				"target_period_id", in.Target.ID.String(),
				"error", err,
			)
			return nil, err
		}
		if c.observer != nil {
			c.observer(st.name, time.Since(start))
		}
	}

	out := &Output{DataPointsBySource: make(map[id.SectionID]int, len(in.Pairs))}
	for i, r := range run.results {
		out.SectionsCopied += r.sections
		out.DataPointsCopied += r.dataPoints
		out.GapsCopied += r.gaps
		out.AssumptionsCopied += r.assumptions
		out.PlansCopied += r.plans
		out.ActionsCopied += r.actions
		out.EvidenceCopied += r.evidence
		out.ResetHistory += r.resets
		out.DataPointsBySource[in.Pairs[i].Source.ID] = r.dataPoints
	}
	return out, nil
}

func (c *Copier) runStage(ctx context.Context, pairs []mapping.Pair, fn func(ctx context.Context, i int, p mapping.Pair) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, p := range pairs {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i, p)
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "rollover cancelled")
	}
	return err
}

// gapstatusReset appends the lifecycle entry for a reset data point whose
// source carried a non-missing status.
func gapstatusReset(dp *reporting.DataPoint, source reporting.GapStatus, actor id.UserID, now time.Time) *reporting.GapStatusHistoryEntry {
	if source == reporting.GapStatusMissing {
		return nil
	}
	return gapstatus.ResetEntry(dp, source, actor, now)
}
