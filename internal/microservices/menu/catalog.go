package menu

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"

	"restaurant-assistant/internal/domain"
	"restaurant-assistant/internal/repository"
)

// Catalog is the read-only menu source for one tenant.
type Catalog interface {
	ListMenuItems(ctx context.Context, tenantID string) ([]domain.MenuItem, error)
}

// PostgresCatalog reads the menu_items table.
type PostgresCatalog struct {
	repo *repository.MenuPG
}

func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{repo: repository.NewMenuPG(db)}
}

func (c *PostgresCatalog) ListMenuItems(ctx context.Context, tenantID string) ([]domain.MenuItem, error) {
	return c.repo.ListMenuItems(ctx, tenantID)
}

// StaticCatalog serves menus held in memory.
type StaticCatalog struct {
	mu    sync.RWMutex
	menus map[string][]domain.MenuItem
}

func NewStaticCatalog() *StaticCatalog {
	return &StaticCatalog{menus: map[string][]domain.MenuItem{}}
}

// Set replaces a tenant's menu.
func (c *StaticCatalog) Set(tenantID string, items ...domain.MenuItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.menus[tenantID] = append([]domain.MenuItem(nil), items...)
}

func (c *StaticCatalog) ListMenuItems(_ context.Context, tenantID string) ([]domain.MenuItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.MenuItem(nil), c.menus[tenantID]...), nil
}

// Find returns the non-deleted item whose name matches case-insensitively.
func Find(items []domain.MenuItem, name string) (domain.MenuItem, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, it := range items {
		if !it.IsDeleted && strings.ToLower(strings.TrimSpace(it.Name)) == key {
			return it, true
		}
	}
	return domain.MenuItem{}, false
}

// Suggest lists up to max item names that share the query's first three
// letters or contain it.
func Suggest(items []domain.MenuItem, query string, max int) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || max <= 0 {
		return nil
	}
	prefix := q
	if r := []rune(q); len(r) > 3 {
		prefix = string(r[:3])
	}
	var out []string
	for _, it := range items {
		if it.IsDeleted {
			continue
		}
		n := strings.ToLower(it.Name)
		if strings.HasPrefix(n, prefix) || strings.Contains(n, q) {
			out = append(out, it.Name)
			if len(out) == max {
				break
			}
		}
	}
	return out
}

// Orderable keeps available, non-deleted items, optionally in one category,
// sorted by category then name.
func Orderable(items []domain.MenuItem, category string) []domain.MenuItem {
	category = strings.TrimSpace(category)
	var out []domain.MenuItem
	for _, it := range items {
		if it.IsDeleted || !it.IsAvailable {
			continue
		}
		if category != "" && !strings.EqualFold(it.Category, category) {
			continue
		}
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}
