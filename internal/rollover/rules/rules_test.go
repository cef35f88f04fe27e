package rules

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esgledger/internal/rollover/models"
	dErrors "esgledger/pkg/domain-errors"
)

func TestResolverOrder(t *testing.T) {
	ctx := context.Background()
	reg := NewInMemoryRegistry()
	_, err := reg.Publish(ctx, &models.DataTypeRolloverRule{DataType: "kpi", RuleType: models.RuleReset, CreatedBy: "admin"})
	require.NoError(t, err)
	r := NewResolver(reg)

	got, err := r.Resolve(ctx, "kpi", nil)
	require.NoError(t, err)
	assert.Equal(t, models.RuleReset, got.RuleType)
	assert.Equal(t, models.RuleSourceRegistry, got.Source)
	assert.Equal(t, 1, got.Version)

	got, err = r.Resolve(ctx, "kpi", []models.RolloverRuleOverride{{DataType: "kpi", RuleType: models.RuleCopyAsDraft}})
	require.NoError(t, err)
	assert.Equal(t, models.RuleCopyAsDraft, got.RuleType)
	assert.Equal(t, models.RuleSourceOverride, got.Source)

	got, err = r.Resolve(ctx, "narrative", nil)
	require.NoError(t, err)
	assert.Equal(t, models.RuleCopy, got.RuleType)
	assert.Equal(t, models.RuleSourceDefault, got.Source)

	active, err := reg.Active(ctx, "kpi")
	require.NoError(t, err)
	assert.Equal(t, models.RuleReset, active.RuleType, "overrides are never persisted")
}

type failingRegistry struct{ InMemoryRegistry }

func (*failingRegistry) Active(context.Context, string) (*models.DataTypeRolloverRule, error) {
	return nil, errors.New("db down")
}

func TestResolverRegistryFailure(t *testing.T) {
	r := NewResolver(&failingRegistry{})
	_, err := r.Resolve(context.Background(), "kpi", nil)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestResolveAllMemoizes(t *testing.T) {
	ctx := context.Background()
	reg := NewInMemoryRegistry()
	_, err := reg.Publish(ctx, &models.DataTypeRolloverRule{DataType: "kpi", RuleType: models.RuleReset, CreatedBy: "admin"})
	require.NoError(t, err)

	plan, err := NewResolver(reg).ResolveAll(ctx, []string{"kpi", "narrative", "kpi"}, nil)
	require.NoError(t, err)
	assert.Len(t, plan.Rules(), 2)
	assert.Equal(t, models.RuleReset, plan.RuleFor("kpi"))
	assert.Equal(t, models.RuleCopy, plan.RuleFor("narrative"))
	assert.Equal(t, models.RuleCopy, plan.RuleFor("unknown"))
	assert.Equal(t, models.RuleCopy, (*Plan)(nil).RuleFor("kpi"))
}

func TestInMemoryRegistryVersions(t *testing.T) {
	ctx := context.Background()
	reg := NewInMemoryRegistry()

	v1, err := reg.Publish(ctx, &models.DataTypeRolloverRule{DataType: "kpi", RuleType: models.RuleReset, CreatedBy: "admin"})
	require.NoError(t, err)
	v2, err := reg.Publish(ctx, &models.DataTypeRolloverRule{DataType: "kpi", RuleType: models.RuleCopyAsDraft, CreatedBy: "admin"})
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)
	assert.Equal(t, 2, v2.Version)

	history, err := reg.History(ctx, "kpi")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.False(t, history[0].Active)
	assert.True(t, history[1].Active)

	active, err := reg.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, models.RuleCopyAsDraft, active[0].RuleType)

	_, err = reg.Publish(ctx, &models.DataTypeRolloverRule{DataType: "kpi", RuleType: "clone", CreatedBy: "admin"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	_, err = reg.Publish(ctx, &models.DataTypeRolloverRule{DataType: "kpi", RuleType: models.RuleCopy})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestLoadSeed(t *testing.T) {
	ctx := context.Background()
	reg := NewInMemoryRegistry()
	doc := `
rules:
  - data_type: kpi
    rule: reset
    description: re-measured yearly
  - data_type: narrative
    rule: copy_as_draft
`
	n, err := LoadSeed(ctx, reg, strings.NewReader(doc), "ops")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = LoadSeed(ctx, reg, strings.NewReader(doc), "ops")
	require.NoError(t, err)
	assert.Zero(t, n, "unchanged rules are not republished")

	_, err = ParseSeed(strings.NewReader("rules:\n  - data_type: kpi\n    rule: clone\n"))
	assert.Error(t, err)
	_, err = ParseSeed(strings.NewReader("rules:\n  - data_type: kpi\n    rule: copy\n  - data_type: kpi\n    rule: reset\n"))
	assert.Error(t, err)
	_, err = ParseSeed(strings.NewReader("rules:\n  - data_type: kpi\n    rule: copy\n    extra: x\n"))
	assert.Error(t, err, "unknown fields rejected")
}
