package domain

import "time"

// LineRequest is one requested item, resolved against the menu by name.
type LineRequest struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Variant  string `json:"variant,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

type PlaceOrderRequest struct {
	TenantID            string
	UserID              string
	Items               []LineRequest
	TableNumber         string
	Floor               string
	OrderType           string
	Customer            *CustomerInfo
	SpecialInstructions string
}

type UpdateOrderRequest struct {
	TenantID     string
	UserID       string
	OrderID      string
	ReplaceItems []LineRequest
	AddItems     []LineRequest
	TableNumber  *string
	Floor        string
	Instructions string
	Customer     *CustomerInfo
}

type BillingRequest struct {
	TenantID      string
	UserID        string
	OrderID       string
	PaymentMethod string
	Discount      float64
}

type ReserveRequest struct {
	TenantID      string
	TableNumber   string
	Floor         string
	GuestCount    int
	Time          *time.Time
	CustomerName  string
	CustomerPhone string
}

// OrderResult pairs a mutated order with a confirmation that can be read aloud.
type OrderResult struct {
	Order   *Order `json:"order"`
	Message string `json:"message"`
}

type PaymentTotal struct {
	Method string  `json:"method"`
	Orders int     `json:"orders"`
	Amount float64 `json:"amount"`
}

type SalesSummary struct {
	Day             string         `json:"day"`
	CompletedOrders int            `json:"completed_orders"`
	CancelledOrders int            `json:"cancelled_orders"`
	OpenOrders      int            `json:"open_orders"`
	Gross           float64        `json:"gross"`
	Tax             float64        `json:"tax"`
	Discounts       float64        `json:"discounts"`
	Net             float64        `json:"net"`
	AverageTicket   float64        `json:"average_ticket"`
	ByPayment       []PaymentTotal `json:"by_payment"`
}

type ItemPopularity struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Revenue  float64 `json:"revenue"`
}

type TablesSummary struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Occupied  int `json:"occupied"`
	Reserved  int `json:"reserved"`
	Cleaning  int `json:"cleaning"`
}

type DailyUsage struct {
	Day             string `json:"day"`
	SessionCount    int    `json:"session_count"`
	MessageCount    int    `json:"message_count"`
	DurationSeconds int64  `json:"duration_seconds"`
}

type LimitCheck struct {
	Allowed   bool `json:"allowed"`
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
}
