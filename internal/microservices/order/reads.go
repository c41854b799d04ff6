package order

import (
	"context"
	"sort"
	"strings"
	"time"

	"restaurant-assistant/internal/domain"
	"restaurant-assistant/internal/store"
)

var activeStatuses = []domain.OrderStatus{domain.StatusPending, domain.StatusPreparing, domain.StatusReady}

const (
	defaultHistoryLimit = 100
	defaultPopularLimit = 5
)

// GetOrder resolves ref the same way the mutations do.
func (e *Engine) GetOrder(ctx context.Context, tenantID, ref string) (*domain.Order, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	var o *domain.Order
	err := e.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		o, err = e.findOrder(ctx, tx, tenantID, ref, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.Errorf(domain.ErrOrderNotFound, "I couldn't find order %s", strings.TrimSpace(ref))
	}
	return o, nil
}

// ListActive returns every open order, oldest first, optionally for one table.
func (e *Engine) ListActive(ctx context.Context, tenantID, tableNumber string) ([]domain.Order, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	return e.list(ctx, tenantID, store.OrderFilter{Statuses: activeStatuses, TableNumber: strings.TrimSpace(tableNumber)})
}

// History lists orders created on business days from through to, inclusive.
// Empty from means today; empty to means from.
func (e *Engine) History(ctx context.Context, tenantID, from, to string, limit int) ([]domain.Order, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	start, _, err := e.dayBounds(from)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(to) == "" {
		to = from
	}
	_, end, err := e.dayBounds(to)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "The end date is before the start date")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return e.list(ctx, tenantID, store.OrderFilter{From: start, To: end, Limit: limit})
}

// SalesSummary totals one business day. Money figures cover billed orders only.
func (e *Engine) SalesSummary(ctx context.Context, tenantID, day string) (*domain.SalesSummary, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	start, end, err := e.dayBounds(day)
	if err != nil {
		return nil, err
	}
	orders, err := e.list(ctx, tenantID, store.OrderFilter{From: start, To: end})
	if err != nil {
		return nil, err
	}

	sum := &domain.SalesSummary{Day: domain.DayKey(start, e.loc), ByPayment: []domain.PaymentTotal{}}
	byMethod := map[string]*domain.PaymentTotal{}
	for _, o := range orders {
		switch o.Status {
		case domain.StatusCancelled:
			sum.CancelledOrders++
			continue
		case domain.StatusCompleted:
		default:
			sum.OpenOrders++
			continue
		}
		sum.CompletedOrders++
		sum.Gross += o.Subtotal
		sum.Tax += o.TaxAmount
		sum.Discounts += o.Discount
		sum.Net += o.FinalTotal

		pt, ok := byMethod[o.PaymentMethod]
		if !ok {
			pt = &domain.PaymentTotal{Method: o.PaymentMethod}
			byMethod[o.PaymentMethod] = pt
		}
		pt.Orders++
		pt.Amount += o.FinalTotal
	}
	sum.Gross = domain.Round2(sum.Gross)
	sum.Tax = domain.Round2(sum.Tax)
	sum.Discounts = domain.Round2(sum.Discounts)
	sum.Net = domain.Round2(sum.Net)
	if sum.CompletedOrders > 0 {
		sum.AverageTicket = domain.Round2(sum.Net / float64(sum.CompletedOrders))
	}
	for _, pt := range byMethod {
		pt.Amount = domain.Round2(pt.Amount)
		sum.ByPayment = append(sum.ByPayment, *pt)
	}
	sort.Slice(sum.ByPayment, func(i, j int) bool {
		if sum.ByPayment[i].Amount != sum.ByPayment[j].Amount {
			return sum.ByPayment[i].Amount > sum.ByPayment[j].Amount
		}
		return sum.ByPayment[i].Method < sum.ByPayment[j].Method
	})
	return sum, nil
}

// PopularItems ranks items by quantity across the day's orders that were
// not cancelled.
func (e *Engine) PopularItems(ctx context.Context, tenantID, day string, limit int) ([]domain.ItemPopularity, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	start, end, err := e.dayBounds(day)
	if err != nil {
		return nil, err
	}
	orders, err := e.list(ctx, tenantID, store.OrderFilter{From: start, To: end})
	if err != nil {
		return nil, err
	}

	byName := map[string]*domain.ItemPopularity{}
	for _, o := range orders {
		if o.Status == domain.StatusCancelled {
			continue
		}
		for _, l := range o.Items {
			key := strings.ToLower(l.Name)
			p, ok := byName[key]
			if !ok {
				p = &domain.ItemPopularity{Name: l.Name}
				byName[key] = p
			}
			p.Quantity += l.Quantity
			p.Revenue += l.LineTotal
		}
	}
	out := make([]domain.ItemPopularity, 0, len(byName))
	for _, p := range byName {
		p.Revenue = domain.Round2(p.Revenue)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].Name < out[j].Name
	})
	if limit <= 0 {
		limit = defaultPopularLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (e *Engine) list(ctx context.Context, tenantID string, f store.OrderFilter) ([]domain.Order, error) {
	var out []domain.Order
	err := e.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Orders().List(ctx, tenantID, f)
		return err
	})
	return out, err
}

// dayBounds parses a YYYY-MM-DD business day; empty means today.
func (e *Engine) dayBounds(day string) (time.Time, time.Time, error) {
	day = strings.TrimSpace(day)
	if day == "" {
		start, end := domain.DayBounds(e.now(), e.loc)
		return start, end, nil
	}
	t, err := time.ParseInLocation(domain.DayLayout, day, e.loc)
	if err != nil {
		return time.Time{}, time.Time{}, domain.Errorf(domain.ErrInvalidArgument, "%q is not a date; use YYYY-MM-DD", day)
	}
	start, end := domain.DayBounds(t, e.loc)
	return start, end, nil
}
