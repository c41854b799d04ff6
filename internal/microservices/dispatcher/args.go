package dispatcher

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"restaurant-assistant/internal/domain"
)

// flexString accepts "5" or 5; models send table and order numbers both ways.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*f = flexString(strconv.FormatInt(i, 10))
		return nil
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) String() string { return string(f) }

func decode(tool string, raw json.RawMessage, dst any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return domain.Errorf(domain.ErrInvalidArgument, "I couldn't read the details for %s: %v", humanize(tool), err)
	}
	return nil
}

type placeOrderArgs struct {
	Items               []domain.LineRequest `json:"items"`
	TableNumber         flexString           `json:"table_number"`
	Floor               string               `json:"floor"`
	OrderType           string               `json:"order_type"`
	CustomerName        string               `json:"customer_name"`
	CustomerPhone       string               `json:"customer_phone"`
	DeliveryAddress     string               `json:"delivery_address"`
	RoomNumber          flexString           `json:"room_number"`
	SpecialInstructions string               `json:"special_instructions"`
}

func (a placeOrderArgs) customer() *domain.CustomerInfo {
	c := domain.CustomerInfo{
		Name:    strings.TrimSpace(a.CustomerName),
		Phone:   strings.TrimSpace(a.CustomerPhone),
		Address: strings.TrimSpace(a.DeliveryAddress),
		Room:    a.RoomNumber.String(),
	}
	if c == (domain.CustomerInfo{}) {
		return nil
	}
	return &c
}

type updateOrderArgs struct {
	OrderID             flexString           `json:"order_id"`
	Items               []domain.LineRequest `json:"items"`
	AddItems            []domain.LineRequest `json:"add_items"`
	TableNumber         *flexString          `json:"table_number"`
	Floor               string               `json:"floor"`
	SpecialInstructions string               `json:"special_instructions"`
	CustomerName        string               `json:"customer_name"`
	CustomerPhone       string               `json:"customer_phone"`
}

type orderStatusArgs struct {
	OrderID flexString `json:"order_id"`
	Status  string     `json:"status"`
}

type cancelArgs struct {
	OrderID flexString `json:"order_id"`
	Reason  string     `json:"reason"`
}

type billingArgs struct {
	OrderID       flexString `json:"order_id"`
	PaymentMethod string     `json:"payment_method"`
	Discount      float64    `json:"discount"`
}

type discountArgs struct {
	OrderID  flexString `json:"order_id"`
	Discount float64    `json:"discount"`
}

type orderRefArgs struct {
	OrderID flexString `json:"order_id"`
}

type activeOrdersArgs struct {
	TableNumber flexString `json:"table_number"`
}

type historyArgs struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Limit int    `json:"limit"`
}

type tableArgs struct {
	TableNumber flexString `json:"table_number"`
	Floor       string     `json:"floor"`
}

type listTablesArgs struct {
	Floor  string `json:"floor"`
	Status string `json:"status"`
}

type tableStatusArgs struct {
	TableNumber flexString `json:"table_number"`
	Floor       string     `json:"floor"`
	Status      string     `json:"status"`
	OrderID     flexString `json:"order_id"`
}

type reserveArgs struct {
	TableNumber   flexString `json:"table_number"`
	Floor         string     `json:"floor"`
	GuestCount    int        `json:"guest_count"`
	Time          string     `json:"time"`
	CustomerName  string     `json:"customer_name"`
	CustomerPhone string     `json:"customer_phone"`
}

type menuArgs struct {
	Category string `json:"category"`
}

type itemArgs struct {
	ItemName string `json:"item_name"`
}

type queryArgs struct {
	Query string `json:"query"`
}

type dayArgs struct {
	Date  string `json:"date"`
	Limit int    `json:"limit"`
}

type floorArgs struct {
	Floor string `json:"floor"`
}

type endArgs struct {
	Summary string `json:"summary"`
}
