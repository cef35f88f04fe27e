// Package ownership flags carried entities whose owner is no longer active.
package ownership

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"esgledger/internal/rollover/models"
	id "esgledger/pkg/domain"
	dErrors "esgledger/pkg/domain-errors"
)

// Directory is the external user registry.
type Directory interface {
	IsActive(ctx context.Context, userID id.UserID) (bool, error)
	GetName(ctx context.Context, userID id.UserID) (string, error)
}

type owner struct {
	active bool
	name   string
}

// Validator collects InactiveOwnerWarnings for one rollover. Directory lookups
// are memoized per owner. Safe for concurrent use.
type Validator struct {
	dir      Directory
	mu       sync.Mutex
	owners   map[id.UserID]owner
	warnings []models.InactiveOwnerWarning
}

func NewValidator(dir Directory) *Validator {
	return &Validator{
		dir:    dir,
		owners: make(map[id.UserID]owner),
	}
}

// Check records a warning when ownerID is inactive. It never rejects the
// entity; a directory failure is returned as an internal error.
func (v *Validator) Check(ctx context.Context, entity models.EntityType, entityID, title string, ownerID id.UserID) error {
	if ownerID.IsNil() {
		return nil
	}
	o, err := v.lookup(ctx, ownerID)
	if err != nil {
		return err
	}
	if o.active {
		return nil
	}
	v.mu.Lock()
	v.warnings = append(v.warnings, models.InactiveOwnerWarning{
		EntityType:  entity,
		EntityID:    entityID,
		EntityTitle: title,
		OwnerID:     ownerID,
		OwnerName:   o.name,
	})
	v.mu.Unlock()
	return nil
}

func (v *Validator) lookup(ctx context.Context, ownerID id.UserID) (owner, error) {
	v.mu.Lock()
	o, ok := v.owners[ownerID]
	v.mu.Unlock()
	if ok {
		return o, nil
	}

	active, err := v.dir.IsActive(ctx, ownerID)
	if err != nil {
		return owner{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check owner status")
	}
	o = owner{active: active}
	if !active {
		name, err := v.dir.GetName(ctx, ownerID)
		if err != nil {
			return owner{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve owner name")
		}
		o.name = name
	}

	v.mu.Lock()
	v.owners[ownerID] = o
	v.mu.Unlock()
	return o, nil
}

var entityOrder = map[models.EntityType]int{
	models.EntitySection:           0,
	models.EntityGap:               1,
	models.EntityAssumption:        2,
	models.EntityRemediationPlan:   3,
	models.EntityRemediationAction: 4,
	models.EntityDataPoint:         5,
}

// Warnings returns the collected warnings grouped by entity type in copy
// stage order, then by title and id.
func (v *Validator) Warnings() []models.InactiveOwnerWarning {
	v.mu.Lock()
	out := slices.Clone(v.warnings)
	v.mu.Unlock()
	slices.SortStableFunc(out, func(a, b models.InactiveOwnerWarning) int {
		return cmp.Or(
			cmp.Compare(entityOrder[a.EntityType], entityOrder[b.EntityType]),
			cmp.Compare(a.EntityTitle, b.EntityTitle),
			cmp.Compare(a.EntityID, b.EntityID),
		)
	})
	if out == nil {
		out = []models.InactiveOwnerWarning{}
	}
	return out
}
