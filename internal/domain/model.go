package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleOwner    Role = "owner"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
	RoleWaiter   Role = "waiter"
	RoleCashier  Role = "cashier"
)

type Capability string

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// ParseOrderStatus accepts "confirmed" as the older name of pending.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "confirmed":
		return StatusPending, true
	case "preparing":
		return StatusPreparing, true
	case "ready":
		return StatusReady, true
	case "completed":
		return StatusCompleted, true
	case "cancelled", "canceled":
		return StatusCancelled, true
	}
	return "", false
}

func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type OrderType string

const (
	OrderDineIn      OrderType = "dine-in"
	OrderTakeaway    OrderType = "takeaway"
	OrderDelivery    OrderType = "delivery"
	OrderRoomService OrderType = "room-service"
)

// ParseOrderType normalizes the spellings callers send; empty means dine-in.
func ParseOrderType(s string) (OrderType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dine-in", "dine_in", "dinein":
		return OrderDineIn, true
	case "takeaway", "take-away", "takeout", "take_away":
		return OrderTakeaway, true
	case "delivery":
		return OrderDelivery, true
	case "room-service", "room_service", "roomservice":
		return OrderRoomService, true
	}
	return "", false
}

type TableStatus string

const (
	TableAvailable TableStatus = "available"
	TableOccupied  TableStatus = "occupied"
	TableReserved  TableStatus = "reserved"
	TableCleaning  TableStatus = "cleaning"
)

func ParseTableStatus(s string) (TableStatus, bool) {
	switch TableStatus(strings.ToLower(strings.TrimSpace(s))) {
	case TableAvailable:
		return TableAvailable, true
	case TableOccupied:
		return TableOccupied, true
	case TableReserved:
		return TableReserved, true
	case TableCleaning:
		return TableCleaning, true
	}
	return "", false
}

type Variant struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type OrderLine struct {
	MenuItemID string   `json:"menu_item_id"`
	Name       string   `json:"name"`
	UnitPrice  float64  `json:"unit_price"`
	Quantity   int      `json:"quantity"`
	LineTotal  float64  `json:"line_total"`
	Variant    *Variant `json:"variant,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

type TaxLine struct {
	Name   string  `json:"name"`
	Rate   float64 `json:"rate"`
	Amount float64 `json:"amount"`
}

type CustomerInfo struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	Room    string `json:"room,omitempty"`
}

type Order struct {
	ID                  string       `json:"id"`
	TenantID            string       `json:"tenant_id"`
	Day                 string       `json:"day"` // YYYY-MM-DD in business time
	DailyOrderID        int64        `json:"daily_order_id"`
	OrderNumber         string       `json:"order_number"`
	Items               []OrderLine  `json:"items"`
	Subtotal            float64      `json:"subtotal"`
	TaxAmount           float64      `json:"tax_amount"`
	TaxBreakdown        []TaxLine    `json:"tax_breakdown,omitempty"`
	FinalAmount         float64      `json:"final_amount"`
	Status              OrderStatus  `json:"status"`
	TableNumber         string       `json:"table_number,omitempty"`
	OrderType           OrderType    `json:"order_type"`
	Customer            CustomerInfo `json:"customer_info"`
	SpecialInstructions string       `json:"special_instructions,omitempty"`
	PaymentMethod       string       `json:"payment_method,omitempty"`
	Discount            float64      `json:"discount,omitempty"`
	FinalTotal          float64      `json:"final_total,omitempty"`
	CreatedBy           string       `json:"created_by"`
	UpdatedBy           string       `json:"updated_by,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
	BilledAt            *time.Time   `json:"billed_at,omitempty"`
	CancelledAt         *time.Time   `json:"cancelled_at,omitempty"`
}

type Reservation struct {
	GuestCount    int        `json:"guest_count"`
	Time          *time.Time `json:"time,omitempty"`
	CustomerName  string     `json:"customer_name,omitempty"`
	CustomerPhone string     `json:"customer_phone,omitempty"`
}

type Table struct {
	ID             string       `json:"id"`
	TenantID       string       `json:"tenant_id"`
	Name           string       `json:"name"`
	FloorID        string       `json:"floor_id"`
	FloorName      string       `json:"floor_name,omitempty"`
	Status         TableStatus  `json:"status"`
	Capacity       int          `json:"capacity"`
	CurrentOrderID string       `json:"current_order_id,omitempty"`
	Reservation    *Reservation `json:"reservation,omitempty"`
	OccupiedAt     *time.Time   `json:"occupied_at,omitempty"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type MenuItem struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category,omitempty"`
	Price       float64   `json:"price"`
	Variants    []Variant `json:"variants,omitempty"`
	IsAvailable bool      `json:"is_available"`
	IsDeleted   bool      `json:"is_deleted"`
}

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

type ActionRecord struct {
	Tool    string    `json:"tool"`
	Success bool      `json:"success"`
	OrderID string    `json:"order_id,omitempty"`
	At      time.Time `json:"at"`
}

type Session struct {
	ID               string         `json:"id"`
	TenantID         string         `json:"tenant_id"`
	UserID           string         `json:"user_id"`
	Role             Role           `json:"role"`
	Status           SessionStatus  `json:"status"`
	StartedAt        time.Time      `json:"started_at"`
	EndedAt          *time.Time     `json:"ended_at,omitempty"`
	MessageCount     int            `json:"message_count"`
	ActionsPerformed []ActionRecord `json:"actions_performed"`
	Summary          string         `json:"summary,omitempty"`
}

type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"` // user | assistant
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
