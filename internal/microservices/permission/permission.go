// Package permission maps roles to the capabilities they may invoke and to
// their daily message quota. Everything here is static configuration; there
// is no I/O and no failure mode.
package permission

import (
	"sort"
	"strings"

	"restaurant-assistant/internal/domain"
)

const (
	PlaceOrder            domain.Capability = "place_order"
	UpdateOrder           domain.Capability = "update_order"
	UpdateOrderStatus     domain.Capability = "update_order_status"
	CancelOrder           domain.Capability = "cancel_order"
	CompleteBilling       domain.Capability = "complete_billing"
	ApplyDiscount         domain.Capability = "apply_discount"
	GetOrderDetails       domain.Capability = "get_order_details"
	ListActiveOrders      domain.Capability = "list_active_orders"
	GetOrderHistory       domain.Capability = "get_order_history"
	GetTableStatus        domain.Capability = "get_table_status"
	ListTables            domain.Capability = "list_tables"
	UpdateTableStatus     domain.Capability = "update_table_status"
	ReserveTable          domain.Capability = "reserve_table"
	ReleaseTable          domain.Capability = "release_table"
	GetMenu               domain.Capability = "get_menu"
	CheckItemAvailability domain.Capability = "check_item_availability"
	SearchKnowledgeBase   domain.Capability = "search_knowledge_base"
	GetSalesSummary       domain.Capability = "get_sales_summary"
	GetPopularItems       domain.Capability = "get_popular_items"
	GetTablesSummary      domain.Capability = "get_tables_summary"
	GetDailyUsage         domain.Capability = "get_daily_usage"
	EndConversation       domain.Capability = "end_conversation"
)

// All lists every capability in catalog order.
var All = []domain.Capability{
	PlaceOrder, UpdateOrder, UpdateOrderStatus, CancelOrder, CompleteBilling, ApplyDiscount,
	GetOrderDetails, ListActiveOrders, GetOrderHistory,
	GetTableStatus, ListTables, UpdateTableStatus, ReserveTable, ReleaseTable,
	GetMenu, CheckItemAvailability, SearchKnowledgeBase,
	GetSalesSummary, GetPopularItems, GetTablesSummary,
	GetDailyUsage, EndConversation,
}

// CapabilitySet holds the capabilities a role is granted. Missing keys are false.
type CapabilitySet map[domain.Capability]bool

// Names returns the granted capabilities sorted by name.
func (s CapabilitySet) Names() []string {
	out := make([]string, 0, len(s))
	for c, ok := range s {
		if ok {
			out = append(out, string(c))
		}
	}
	sort.Strings(out)
	return out
}

func grant(caps ...domain.Capability) CapabilitySet {
	s := make(CapabilitySet, len(All))
	for _, c := range All {
		s[c] = false
	}
	for _, c := range caps {
		s[c] = true
	}
	return s
}

var roleCapabilities = map[domain.Role]CapabilitySet{
	domain.RoleOwner:   grant(All...),
	domain.RoleManager: grant(All...),
	domain.RoleWaiter: grant(
		PlaceOrder, UpdateOrder, UpdateOrderStatus,
		GetOrderDetails, ListActiveOrders, GetOrderHistory,
		GetTableStatus, ListTables, UpdateTableStatus, ReserveTable, ReleaseTable,
		GetMenu, CheckItemAvailability, SearchKnowledgeBase,
		GetTablesSummary, GetDailyUsage, EndConversation,
	),
	domain.RoleCashier: grant(
		CompleteBilling, ApplyDiscount,
		GetOrderDetails, ListActiveOrders, GetOrderHistory,
		GetTableStatus, ListTables, ReleaseTable,
		GetMenu, CheckItemAvailability, SearchKnowledgeBase,
		GetSalesSummary, GetTablesSummary, GetDailyUsage, EndConversation,
	),
	domain.RoleEmployee: grant(
		PlaceOrder, UpdateOrder,
		GetOrderDetails, ListActiveOrders,
		GetTableStatus, ListTables, UpdateTableStatus,
		GetMenu, CheckItemAvailability, SearchKnowledgeBase,
		GetDailyUsage, EndConversation,
	),
}

var defaultDailyLimits = map[domain.Role]int{
	domain.RoleOwner:    500,
	domain.RoleManager:  300,
	domain.RoleWaiter:   150,
	domain.RoleCashier:  150,
	domain.RoleEmployee: 100,
}

// NormalizeRole folds case and maps anything unknown to employee.
func NormalizeRole(s string) domain.Role {
	r := domain.Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := roleCapabilities[r]; ok {
		return r
	}
	return domain.RoleEmployee
}

// Gateway answers permission and quota questions for a role.
type Gateway struct {
	limits map[domain.Role]int
}

// NewGateway applies per-role limit overrides (keyed by role name) on top
// of the built-in limits. Overrides for unknown roles are ignored.
func NewGateway(limitOverrides map[string]int) *Gateway {
	limits := make(map[domain.Role]int, len(defaultDailyLimits))
	for r, n := range defaultDailyLimits {
		limits[r] = n
	}
	for name, n := range limitOverrides {
		r := domain.Role(strings.ToLower(strings.TrimSpace(name)))
		if _, ok := limits[r]; ok {
			limits[r] = n
		}
	}
	return &Gateway{limits: limits}
}

// PermissionsFor returns a copy of the role's capability set.
func (g *Gateway) PermissionsFor(role domain.Role) CapabilitySet {
	src := roleCapabilities[NormalizeRole(string(role))]
	out := make(CapabilitySet, len(src))
	for c, ok := range src {
		out[c] = ok
	}
	return out
}

func (g *Gateway) Has(role domain.Role, c domain.Capability) bool {
	return roleCapabilities[NormalizeRole(string(role))][c]
}

func (g *Gateway) DailyLimit(role domain.Role) int {
	return g.limits[NormalizeRole(string(role))]
}

// FilterTools keeps the tools whose capability the role holds, preserving order.
func (g *Gateway) FilterTools(tools []Tool, role domain.Role) []Tool {
	caps := roleCapabilities[NormalizeRole(string(role))]
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		if caps[domain.Capability(t.Name)] {
			out = append(out, t)
		}
	}
	return out
}
