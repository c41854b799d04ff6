package domain

import "time"

const (
	EventOrderPlaced        = "order.placed"
	EventOrderUpdated       = "order.updated"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
	EventOrderBilled        = "order.billed"
	EventTableStatusChanged = "table.status_changed"
)

type Event struct {
	Kind         string      `json:"kind"`
	TenantID     string      `json:"tenant_id"`
	OrderID      string      `json:"order_id,omitempty"`
	OrderNumber  string      `json:"order_number,omitempty"`
	DailyOrderID int64       `json:"daily_order_id,omitempty"`
	TableNumber  string      `json:"table_number,omitempty"`
	OldStatus    string      `json:"old_status,omitempty"`
	NewStatus    string      `json:"new_status,omitempty"`
	Amount       float64     `json:"amount,omitempty"`
	ChangedBy    string      `json:"changed_by,omitempty"`
	OccurredAt   time.Time   `json:"occurred_at"`
	Items        []OrderLine `json:"items,omitempty"`
}
