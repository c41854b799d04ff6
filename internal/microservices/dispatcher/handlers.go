package dispatcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"restaurant-assistant/internal/domain"
	"restaurant-assistant/internal/microservices/conversation"
	"restaurant-assistant/internal/microservices/menu"
	"restaurant-assistant/internal/microservices/order"
	"restaurant-assistant/internal/microservices/permission"
	"restaurant-assistant/internal/microservices/table"
)

const knowledgeResults = 3

// Services are the engines the handlers call into.
type Services struct {
	Orders    *order.Engine
	Tables    *table.Engine
	Menu      menu.Catalog
	Sessions  *conversation.Tracker
	Knowledge KnowledgeBase
	Perms     *permission.Gateway
	Location  *time.Location
	Currency  string
}

type handlers struct{ Services }

// Handlers builds one typed handler per capability.
func Handlers(svc Services) map[domain.Capability]Handler {
	if svc.Location == nil {
		svc.Location = time.UTC
	}
	if svc.Knowledge == nil {
		svc.Knowledge = NewStaticKnowledge(nil)
	}
	h := handlers{svc}
	return map[domain.Capability]Handler{
		permission.PlaceOrder:            h.placeOrder,
		permission.UpdateOrder:           h.updateOrder,
		permission.UpdateOrderStatus:     h.updateOrderStatus,
		permission.CancelOrder:           h.cancelOrder,
		permission.CompleteBilling:       h.completeBilling,
		permission.ApplyDiscount:         h.applyDiscount,
		permission.GetOrderDetails:       h.getOrderDetails,
		permission.ListActiveOrders:      h.listActiveOrders,
		permission.GetOrderHistory:       h.getOrderHistory,
		permission.GetTableStatus:        h.getTableStatus,
		permission.ListTables:            h.listTables,
		permission.UpdateTableStatus:     h.updateTableStatus,
		permission.ReserveTable:          h.reserveTable,
		permission.ReleaseTable:          h.releaseTable,
		permission.GetMenu:               h.getMenu,
		permission.CheckItemAvailability: h.checkItemAvailability,
		permission.SearchKnowledgeBase:   h.searchKnowledgeBase,
		permission.GetSalesSummary:       h.getSalesSummary,
		permission.GetPopularItems:       h.getPopularItems,
		permission.GetTablesSummary:      h.getTablesSummary,
		permission.GetDailyUsage:         h.getDailyUsage,
		permission.EndConversation:       h.endConversation,
	}
}

func (h handlers) money(v float64) string { return fmt.Sprintf("%s%.2f", h.Currency, v) }

func orderResult(r *domain.OrderResult) Result {
	return Result{Message: r.Message, Data: r.Order, OrderID: r.Order.ID}
}

func (h handlers) placeOrder(ctx context.Context, inv Invocation) (Result, error) {
	var a placeOrderArgs
	if err := decode(inv.Tool, inv.Args, &a); err != nil {
		return Result{}, err
	}
	r, err := h.Orders.PlaceOrder(ctx, domain.PlaceOrderRequest{
		TenantID:            inv.TenantID,
		UserID:              inv.UserID,
		Items:               a.Items,
		TableNumber:         a.TableNumber.String(),
		Floor:               a.Floor,
		OrderType:           a.OrderType,
		Customer:            a.customer(),
		SpecialInstructions: a.SpecialInstructions,
	})
	if err != nil {
		return Result{}, err
	}
	return orderResult(r), nil
}

func (h handlers) updateOrder(ctx context.Context, inv Invocation) (Result, error) {
	var a updateOrderArgs
	if err := decode(inv.Tool, inv.Args, &a); err != nil {
		return Result{}, err
	}
	req := domain.UpdateOrderRequest{
		TenantID:     inv.TenantID,
		UserID:       inv.UserID,
		OrderID:      a.OrderID.String(),
		ReplaceItems: a.Items,
		AddItems:     a.AddItems,
		Floor:        a.Floor,
		Instructions: a.SpecialInstructions,
	}
	if a.TableNumber != nil {
		s := a.TableNumber.String()
		req.TableNumber = &s
	}
	if a.CustomerName != "" || a.CustomerPhone != "" {
		req.Customer = &domain.CustomerInfo{Name: a.CustomerName, Phone: a.CustomerPhone}
	}
	r, err := h.Orders.UpdateOrder(ctx, req)
	if err != nil {
		return Result{}, err
	}
	return orderResult(r), nil
}

func (h handlers) updateOrderStatus(ctx context.Context, inv Invocation) (Result, error) {
	var a orderStatusArgs
	if err := decode(inv.Tool, inv.Args, &a); err != nil {
		return Result{}, err
	}
	r, err := h.Orders.UpdateStatus(ctx, inv.TenantID, inv.UserID, a.OrderID.String(), a.Status)
	if err != nil {
		return Result{}, err
	}
	return orderResult(r), nil
}

func (h handlers) cancelOrder(ctx context.Context, inv Invocation) (Result, error) {
	var a cancelArgs
	if err := decode(inv.Tool, inv.Args, &a); err != nil {
		return Result{}, err
	}
	r, err := h.Orders.CancelOrder(ctx, inv.TenantID, inv.UserID, a.OrderID.String(), a.Reason)
	if err != nil {
		return Result{}, err
	}
	return orderResult(r), nil
}

func (h handlers) completeBilling(ctx context.Context, inv Invocation) (Result, error) {
	var a billingArgs
	if err := decode(inv.Tool, inv.Args, &a); err != nil {
		return Result{}, err
	}
	if a.Discount > 0 && h.Perms != nil && !h.Perms.Has(inv.Role, permission.ApplyDiscount) {
		return Result{}, domain.Errorf(domain.ErrPermissionDenied, "The %s role is not allowed to apply discount", inv.Role)
	}
	r, err := h.Orders.CompleteBilling(ctx, domain.BillingRequest{
		TenantID:      inv.TenantID,
		UserID:        inv.UserID,
		OrderID:       a.OrderID.String(),
		PaymentMethod: a.PaymentMethod,
		Discount:      a.Discount,
	})
	if err != nil {
		return Result{}, err
	}
	return orderResult(r), nil
}

func (h handlers) applyDiscount(ctx context.Context, inv Invocation) (Result, error) {
	var a discountArgs
	if err := decode(inv.Tool, inv.Args, &a); err != nil {
		return Result{}, err
	}
	r, err := h.Orders.ApplyDiscount(ctx, inv.TenantID, inv.UserID, a.OrderID.String(), a.Discount)
	if err != nil {
		return Result{}, err
	}
	return orderResult(r), nil
}

func (h handlers) getOrderDetails(ctx context.Context, inv Invocation) (Result, error) {
	var a orderRefArgs
	if err := decode(inv.Tool, inv.Args, &a); err != nil {
		return Result{}, err
	}
	o, err := h.Orders.GetOrder(ctx, inv.TenantID, a.OrderID.String())
	if err != nil {
		return Result{}, err
	}
	msg := fmt.Sprintf("Order #%d is %s, %d line(s), total %s", o.DailyOrderID, o.Status, len(o.Items), h.money(o.FinalAmount))
	if o.TableNumber != "" {
		msg += ", table " + o.TableNumber
	}
	return Result{Message: msg + ".", Data: o, OrderID: o.ID}, nil
}

func (h handlers) listActiveOrders(ctx context.Context, inv Invocation) (Result, error) {
	var a activeOrdersArgs
	if err := decode(inv.Tool, inv.Args, &a); err != nil {
		return Result{}, err
	}
	orders, err := h.Orders.ListActive(ctx, inv.TenantID, a.TableNumber.String())
	if err != nil {
		return Result{}, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return Result{Message: countMessage(len(orders), "active order"), Data: orders}, nil
}

func (h handlers) getOrderHistory(ctx context.Context, inv Invocation) (Result, error) {
	var a historyArgs
	if err := decode(inv.Tool, inv.Args, &a); err != nil {
		return Result{}, err
	}
	orders, err := h.Orders.History(ctx, inv.TenantID, a.From, a.To, a.Limit)
	if err != nil {
		return Result{}, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return Result{Message: countMessage(len(orders), "order"), Data: orders}, nil
}

func (h handlers) getTableStatus(ctx context.Context, inv Invocation) (Result, error) {
	var a tableArgs
	if err := decode(inv.Tool, inv.Args, &a); err != nil {
		return Result{}, err
	}
	t, err := h.Tables.Get(ctx, inv.TenantID, a.TableNumber.String(), a.Floor)
	if err != nil {
		return Result{}, err
	}
	return Result{Message: tableMessage(t), Data: t, OrderID: t.CurrentOrderID}, nil
}

func (h handlers) listTables(ctx context.Context, inv Invocation) (Result, error) {
	var a listTablesArgs
	if err := decode(inv.Tool, inv.Args, &a); err != nil {
		return Result{}, err
	}
	tables, err := h.Tables.List(ctx, inv.TenantID, a.Floor, a.Status)
	if err != nil {
		return Result{}, err
	}
	if tables == nil {
		tables = []domain.Table{}
	}
	return Result{Message: countMessage(len(tables), "table"), Data: tables}, nil
}

func (h handlers) updateTableStatus(ctx context.Context, inv Invocation) (Result, error) {
	var a tableStatusArgs
	if err := decode(inv.Tool, inv.Args, &a); err != nil {
		return Result{}, err
	}
	t, err := h.Tables.SetStatus(ctx, inv.TenantID, a.TableNumber.String(), a.Floor, a.Status, a.OrderID.String(), inv.UserID)
	if err != nil {
		return Result{}, err
	}
	return Result{Message: tableMessage(t), Data: t, OrderID: t.CurrentOrderID}, nil
}

func (h handlers) reserveTable(ctx context.Context, inv Invocation) (Result, error) {
	var a reserveArgs
	if err := decode(inv.Tool, inv.Args, &a); err != nil {
		return Result{}, err
	}
	req := domain.ReserveRequest{
		TenantID:      inv.TenantID,
		TableNumber:   a.TableNumber.String(),
		Floor:         a.Floor,
		GuestCount:    a.GuestCount,
		CustomerName:  strings.TrimSpace(a.CustomerName),
		CustomerPhone: strings.TrimSpace(a.CustomerPhone),
	}
	if s := strings.TrimSpace(a.Time); s != "" {
		at, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return Result{}, domain.Errorf(domain.ErrInvalidArgument, "%q is not a time I understand; use a full date and time", s)
		}
		req.Time = &at
	}
	t, err := h.Tables.Reserve(ctx, req, inv.UserID)
	if err != nil {
		return Result{}, err
	}
	msg := fmt.Sprintf("Table %s is reserved for %d", t.Name, a.GuestCount)
	if req.CustomerName != "" {
		msg += " under " + req.CustomerName
	}
	if req.Time != nil {
		msg += " at " + req.Time.In(h.Location).Format("15:04 on Jan 2")
	}
	return Result{Message: msg + ".", Data: t}, nil
}

func (h handlers) releaseTable(ctx context.Context, inv Invocation) (Result, error) {
	var a tableArgs
	if err := decode(inv.Tool, inv.Args, &a); err != nil {
		return Result{}, err
	}
	t, err := h.Tables.Release(ctx, inv.TenantID, a.TableNumber.String(), a.Floor, inv.UserID)
	if err != nil {
		return Result{}, err
	}
	return Result{Message: tableMessage(t), Data: t}, nil
}

func (h handlers) getMenu(ctx context.Context, inv Invocation) (Result, error) {
	var a menuArgs
	if err := decode(inv.Tool, inv.Args, &a); err != nil {
		return Result{}, err
	}
	items, err := h.Menu.ListMenuItems(ctx, inv.TenantID)
	if err != nil {
		return Result{}, fmt.Errorf("load menu: %w", err)
	}
	out := menu.Orderable(items, a.Category)
	if out == nil {
		out = []domain.MenuItem{}
	}
	return Result{Message: countMessage(len(out), "item"), Data: out}, nil
}

type availability struct {
	Name      string           `json:"name"`
	Available bool             `json:"available"`
	Price     float64          `json:"price"`
	Variants  []domain.Variant `json:"variants,omitempty"`
}

func (h handlers) checkItemAvailability(ctx context.Context, inv Invocation) (Result, error) {
	var a itemArgs
	if err := decode(inv.Tool, inv.Args, &a); err != nil {
		return Result{}, err
	}
	name := strings.TrimSpace(a.ItemName)
	if name == "" {
		return Result{}, domain.Errorf(domain.ErrInvalidArgument, "Which item should I check?")
	}
	items, err := h.Menu.ListMenuItems(ctx, inv.TenantID)
	if err != nil {
		return Result{}, fmt.Errorf("load menu: %w", err)
	}
	it, ok := menu.Find(items, name)
	if !ok {
		msg := fmt.Sprintf("I couldn't find %s on the menu", name)
		if s := menu.Suggest(items, name, 3); len(s) > 0 {
			msg += ". Did you mean " + strings.Join(s, ", ") + "?"
		}
		return Result{}, &domain.Error{Kind: domain.ErrItemNotFound, Message: msg}
	}
	av := availability{Name: it.Name, Available: it.IsAvailable, Price: it.Price, Variants: it.Variants}
	msg := fmt.Sprintf("%s is available at %s.", it.Name, h.money(it.Price))
	if !it.IsAvailable {
		msg = it.Name + " is not available right now."
	}
	return Result{Message: msg, Data: av}, nil
}

func (h handlers) searchKnowledgeBase(_ context.Context, inv Invocation) (Result, error) {
	var a queryArgs
	if err := decode(inv.Tool, inv.Args, &a); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(a.Query) == "" {
		return Result{}, domain.Errorf(domain.ErrInvalidArgument, "What would you like to know?")
	}
	hits := h.Knowledge.Search(inv.TenantID, a.Query, knowledgeResults)
	if len(hits) == 0 {
		return Result{Message: "I don't have anything on that.", Data: hits}, nil
	}
	return Result{Message: hits[0].Answer, Data: hits}, nil
}

func (h handlers) getSalesSummary(ctx context.Context, inv Invocation) (Result, error) {
	var a dayArgs
	if err := decode(inv.Tool, inv.Args, &a); err != nil {
		return Result{}, err
	}
	s, err := h.Orders.SalesSummary(ctx, inv.TenantID, a.Date)
	if err != nil {
		return Result{}, err
	}
	msg := fmt.Sprintf("%s: %s net from %d billed order(s), %d cancelled.", s.Day, h.money(s.Net), s.CompletedOrders, s.CancelledOrders)
	return Result{Message: msg, Data: s}, nil
}

func (h handlers) getPopularItems(ctx context.Context, inv Invocation) (Result, error) {
	var a dayArgs
	if err := decode(inv.Tool, inv.Args, &a); err != nil {
		return Result{}, err
	}
	items, err := h.Orders.PopularItems(ctx, inv.TenantID, a.Date, a.Limit)
	if err != nil {
		return Result{}, err
	}
	if len(items) == 0 {
		return Result{Message: "Nothing has been ordered yet.", Data: items}, nil
	}
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, fmt.Sprintf("%s (%d)", it.Name, it.Quantity))
	}
	return Result{Message: "Top items: " + strings.Join(names, ", ") + ".", Data: items}, nil
}

func (h handlers) getTablesSummary(ctx context.Context, inv Invocation) (Result, error) {
	var a floorArgs
	if err := decode(inv.Tool, inv.Args, &a); err != nil {
		return Result{}, err
	}
	s, err := h.Tables.Summary(ctx, inv.TenantID, a.Floor)
	if err != nil {
		return Result{}, err
	}
	msg := fmt.Sprintf("%d of %d tables are available, %d occupied, %d reserved, %d being cleaned.",
		s.Available, s.Total, s.Occupied, s.Reserved, s.Cleaning)
	return Result{Message: msg, Data: s}, nil
}

type usageReport struct {
	domain.DailyUsage
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

func (h handlers) getDailyUsage(ctx context.Context, inv Invocation) (Result, error) {
	var a dayArgs
	if err := decode(inv.Tool, inv.Args, &a); err != nil {
		return Result{}, err
	}
	var asOf time.Time
	if d := strings.TrimSpace(a.Date); d != "" {
		t, err := time.ParseInLocation(domain.DayLayout, d, h.Location)
		if err != nil {
			return Result{}, domain.Errorf(domain.ErrInvalidArgument, "%q is not a date; use YYYY-MM-DD", d)
		}
		asOf = t
	}
	u, err := h.Sessions.DailyUsage(ctx, inv.TenantID, inv.UserID, asOf)
	if err != nil {
		return Result{}, err
	}
	rep := usageReport{DailyUsage: u}
	if h.Perms != nil {
		rep.Limit = h.Perms.DailyLimit(inv.Role)
		if rep.Remaining = rep.Limit - u.MessageCount; rep.Remaining < 0 {
			rep.Remaining = 0
		}
	}
	msg := fmt.Sprintf("You have used %d of %d messages on %s.", u.MessageCount, rep.Limit, u.Day)
	return Result{Message: msg, Data: rep}, nil
}

func (h handlers) endConversation(ctx context.Context, inv Invocation) (Result, error) {
	var a endArgs
	if err := decode(inv.Tool, inv.Args, &a); err != nil {
		return Result{}, err
	}
	if inv.SessionID == "" || h.Sessions == nil {
		return Result{Message: "Goodbye.", EndConversation: true}, nil
	}
	s, err := h.Sessions.EndSession(ctx, inv.TenantID, inv.SessionID, a.Summary)
	if err != nil {
		return Result{}, err
	}
	return Result{Message: "Goodbye.", Data: s, EndConversation: true}, nil
}

func countMessage(n int, noun string) string {
	if n == 1 {
		return "1 " + noun + "."
	}
	return fmt.Sprintf("%d %ss.", n, noun)
}

func tableMessage(t *domain.Table) string {
	where := "Table " + t.Name
	if t.FloorName != "" {
		where += " on " + t.FloorName
	}
	return fmt.Sprintf("%s is %s.", where, t.Status)
}
