package repository

import (
	"context"
	"fmt"

	"restaurant-assistant/internal/domain"
)

// MenuPG reads the menu catalog. Deleted items are returned too; callers
// decide what to hide.
type MenuPG struct {
	db DBTX
}

func NewMenuPG(db DBTX) *MenuPG { return &MenuPG{db: db} }

func (r *MenuPG) ListMenuItems(ctx context.Context, tenantID string) ([]domain.MenuItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, category, price, variants, is_available, is_deleted
		FROM menu_items WHERE tenant_id = $1
		ORDER BY category, name
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list menu items: %w", err)
	}
	defer rows.Close()

	var out []domain.MenuItem
	for rows.Next() {
		var (
			m        domain.MenuItem
			variants []byte
		)
		if err := rows.Scan(&m.ID, &m.Name, &m.Category, &m.Price, &variants, &m.IsAvailable, &m.IsDeleted); err != nil {
			return nil, fmt.Errorf("failed to scan menu item: %w", err)
		}
		if err := unmarshalIfSet(variants, &m.Variants); err != nil {
			return nil, fmt.Errorf("variants of %s: %w", m.Name, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
