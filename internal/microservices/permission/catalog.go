package permission

import "restaurant-assistant/internal/domain"

// CatalogVersion changes whenever a tool or parameter is added, removed or renamed.
const CatalogVersion = "2026.10.1"

type Param struct {
	Name        string
	Type        string // string | integer | number | boolean | array | object
	Description string
	Required    bool
	Enum        []string
	Items       *Param  // element schema for arrays
	Fields      []Param // properties for objects
}

type Tool struct {
	Name        string
	Description string
	Parameters  []Param
}

func (t Tool) Capability() domain.Capability { return domain.Capability(t.Name) }

// JSONSchema renders the tool as a function definition for a chat-completion API.
func (t Tool) JSONSchema() map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"parameters":  objectSchema(t.Parameters),
		},
	}
}

func objectSchema(params []Param) map[string]any {
	props := make(map[string]any, len(params))
	required := []string{}
	for _, p := range params {
		props[p.Name] = p.schema()
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func (p Param) schema() map[string]any {
	if p.Type == "object" {
		s := objectSchema(p.Fields)
		if p.Description != "" {
			s["description"] = p.Description
		}
		return s
	}
	s := map[string]any{"type": p.Type}
	if p.Description != "" {
		s["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		s["enum"] = p.Enum
	}
	if p.Items != nil {
		s["items"] = p.Items.schema()
	}
	return s
}

var (
	orderIDParam = Param{Name: "order_id", Type: "string", Required: true,
		Description: "Order id, or today's order number such as 12"}
	tableParam = Param{Name: "table_number", Type: "string", Required: true, Description: "Table number or name"}
	floorParam = Param{Name: "floor", Type: "string", Description: "Floor name or id, when known"}
	dateParam  = Param{Name: "date", Type: "string", Description: "Business day as YYYY-MM-DD; defaults to today"}
	lineParam  = Param{Type: "object", Fields: []Param{
		{Name: "name", Type: "string", Required: true, Description: "Menu item name"},
		{Name: "quantity", Type: "integer", Required: true},
		{Name: "variant", Type: "string", Description: "Variant name such as Half or Large"},
		{Name: "notes", Type: "string"},
	}}
	orderTypes = []string{"dine-in", "takeaway", "delivery", "room-service"}
)

var catalog = []Tool{
	{
		Name:        string(PlaceOrder),
		Description: "Place a new order, optionally seating it at a table",
		Parameters: []Param{
			{Name: "items", Type: "array", Required: true, Items: &lineParam},
			{Name: "table_number", Type: "string", Description: "Table to occupy for dine-in orders"},
			floorParam,
			{Name: "order_type", Type: "string", Enum: orderTypes},
			{Name: "customer_name", Type: "string"},
			{Name: "customer_phone", Type: "string"},
			{Name: "delivery_address", Type: "string"},
			{Name: "room_number", Type: "string"},
			{Name: "special_instructions", Type: "string"},
		},
	},
	{
		Name:        string(UpdateOrder),
		Description: "Change the items, table, instructions or customer of an open order",
		Parameters: []Param{
			orderIDParam,
			{Name: "items", Type: "array", Items: &lineParam, Description: "Replaces every line of the order"},
			{Name: "add_items", Type: "array", Items: &lineParam, Description: "Appended to the existing lines"},
			{Name: "table_number", Type: "string", Description: "Move the order to this table; empty string unseats it"},
			floorParam,
			{Name: "special_instructions", Type: "string", Description: "Appended to existing instructions"},
			{Name: "customer_name", Type: "string"},
			{Name: "customer_phone", Type: "string"},
		},
	},
	{
		Name:        string(UpdateOrderStatus),
		Description: "Move an open order to another kitchen status",
		Parameters: []Param{
			orderIDParam,
			{Name: "status", Type: "string", Required: true, Enum: []string{"pending", "preparing", "ready"}},
		},
	},
	{
		Name:        string(CancelOrder),
		Description: "Cancel an order that has not reached ready",
		Parameters:  []Param{orderIDParam, {Name: "reason", Type: "string"}},
	},
	{
		Name:        string(CompleteBilling),
		Description: "Bill an order, record payment and free its table",
		Parameters: []Param{
			orderIDParam,
			{Name: "payment_method", Type: "string", Required: true, Description: "cash, card, upi or other"},
			{Name: "discount", Type: "number", Description: "Amount taken off the final amount"},
		},
	},
	{
		Name:        string(ApplyDiscount),
		Description: "Record a discount on an open order ahead of billing",
		Parameters: []Param{
			orderIDParam,
			{Name: "discount", Type: "number", Required: true},
		},
	},
	{
		Name:        string(GetOrderDetails),
		Description: "Show one order with its lines and totals",
		Parameters:  []Param{orderIDParam},
	},
	{
		Name:        string(ListActiveOrders),
		Description: "List orders that are not completed or cancelled",
		Parameters:  []Param{{Name: "table_number", Type: "string"}},
	},
	{
		Name:        string(GetOrderHistory),
		Description: "List orders placed between two business days",
		Parameters: []Param{
			{Name: "from", Type: "string", Description: "YYYY-MM-DD; defaults to today"},
			{Name: "to", Type: "string", Description: "YYYY-MM-DD inclusive; defaults to from"},
			{Name: "limit", Type: "integer"},
		},
	},
	{
		Name:        string(GetTableStatus),
		Description: "Show the status of one table",
		Parameters:  []Param{tableParam, floorParam},
	},
	{
		Name:        string(ListTables),
		Description: "List tables, optionally by floor or status",
		Parameters: []Param{
			floorParam,
			{Name: "status", Type: "string", Enum: []string{"available", "occupied", "reserved", "cleaning"}},
		},
	},
	{
		Name:        string(UpdateTableStatus),
		Description: "Set a table's status, for example marking cleaning done",
		Parameters: []Param{
			tableParam, floorParam,
			{Name: "status", Type: "string", Required: true, Enum: []string{"available", "occupied", "cleaning"}},
			{Name: "order_id", Type: "string", Description: "Required when marking a table occupied"},
		},
	},
	{
		Name:        string(ReserveTable),
		Description: "Reserve an available table",
		Parameters: []Param{
			tableParam, floorParam,
			{Name: "guest_count", Type: "integer", Required: true},
			{Name: "time", Type: "string", Description: "RFC 3339 reservation time"},
			{Name: "customer_name", Type: "string"},
			{Name: "customer_phone", Type: "string"},
		},
	},
	{
		Name:        string(ReleaseTable),
		Description: "Free a table and clear its order and reservation",
		Parameters:  []Param{tableParam, floorParam},
	},
	{
		Name:        string(GetMenu),
		Description: "List available menu items",
		Parameters:  []Param{{Name: "category", Type: "string"}},
	},
	{
		Name:        string(CheckItemAvailability),
		Description: "Check whether a menu item can be ordered",
		Parameters:  []Param{{Name: "item_name", Type: "string", Required: true}},
	},
	{
		Name:        string(SearchKnowledgeBase),
		Description: "Search the restaurant's FAQ and policies",
		Parameters:  []Param{{Name: "query", Type: "string", Required: true}},
	},
	{
		Name:        string(GetSalesSummary),
		Description: "Totals for one business day",
		Parameters:  []Param{dateParam},
	},
	{
		Name:        string(GetPopularItems),
		Description: "Best selling items for one business day",
		Parameters:  []Param{dateParam, {Name: "limit", Type: "integer"}},
	},
	{
		Name:        string(GetTablesSummary),
		Description: "Count tables per status",
		Parameters:  []Param{floorParam},
	},
	{
		Name:        string(GetDailyUsage),
		Description: "How many assistant sessions and messages the caller used today",
		Parameters:  []Param{dateParam},
	},
	{
		Name:        string(EndConversation),
		Description: "End the current conversation",
		Parameters:  []Param{{Name: "summary", Type: "string"}},
	},
}

// Catalog returns a copy of the full tool list.
func Catalog() []Tool {
	out := make([]Tool, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a tool by name.
func Lookup(name string) (Tool, bool) {
	for _, t := range catalog {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}
