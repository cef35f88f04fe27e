// Package catalog serves the organization-level section catalog from which
// reporting periods are seeded.
package catalog

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"esgledger/internal/reporting/models"
	id "esgledger/pkg/domain"
)

// InMemoryRegistry stores catalog items per organization.
type InMemoryRegistry struct {
	mu    sync.RWMutex
	items map[id.OrganizationID][]models.SectionCatalogItem
}

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{items: make(map[id.OrganizationID][]models.SectionCatalogItem)}
}

// Put adds or replaces an item by ID.
func (r *InMemoryRegistry) Put(item models.SectionCatalogItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := r.items[item.OrganizationID]
	for i := range items {
		if items[i].ID == item.ID {
			items[i] = item
			return
		}
	}
	r.items[item.OrganizationID] = append(items, item)
}

// ActiveItems returns active, non-deprecated items ordered by Order then code.
func (r *InMemoryRegistry) ActiveItems(_ context.Context, orgID id.OrganizationID) ([]models.SectionCatalogItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.SectionCatalogItem
	for _, item := range r.items[orgID] {
		if item.Usable() {
			out = append(out, item)
		}
	}
	slices.SortStableFunc(out, func(a, b models.SectionCatalogItem) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.Code, b.Code)
	})
	return out, nil
}

// PostgresRegistry reads section_catalog_items.
type PostgresRegistry struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

func (r *PostgresRegistry) ActiveItems(ctx context.Context, orgID id.OrganizationID) ([]models.SectionCatalogItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, code, title, description, sort_order, active, deprecated
		FROM section_catalog_items
		WHERE organization_id = $1 AND active AND NOT deprecated
		ORDER BY sort_order, code
	`, uuid.UUID(orgID))
	if err != nil {
		return nil, fmt.Errorf("list catalog items: %w", err)
	}
	defer rows.Close()

	var out []models.SectionCatalogItem
	for rows.Next() {
		var (
			item     models.SectionCatalogItem
			iid, org uuid.UUID
		)
		if err := rows.Scan(&iid, &org, &item.Code, &item.Title, &item.Description, &item.Order, &item.Active, &item.Deprecated); err != nil {
			return nil, fmt.Errorf("scan catalog item: %w", err)
		}
		item.ID = id.CatalogItemID(iid)
		item.OrganizationID = id.OrganizationID(org)
		out = append(out, item)
	}
	return out, rows.Err()
}

// Put inserts or updates an item.
func (r *PostgresRegistry) Put(ctx context.Context, item models.SectionCatalogItem) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO section_catalog_items (id, organization_id, code, title, description, sort_order, active, deprecated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code, title = EXCLUDED.title, description = EXCLUDED.description,
			sort_order = EXCLUDED.sort_order, active = EXCLUDED.active, deprecated = EXCLUDED.deprecated
	`, uuid.UUID(item.ID), uuid.UUID(item.OrganizationID), item.Code, item.Title, item.Description,
		item.Order, item.Active, item.Deprecated)
	if err != nil {
		return fmt.Errorf("put catalog item: %w", err)
	}
	return nil
}
