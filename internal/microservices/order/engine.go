package order

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"restaurant-assistant/internal/domain"
	"restaurant-assistant/internal/microservices/counter"
	"restaurant-assistant/internal/microservices/events"
	"restaurant-assistant/internal/microservices/table"
	"restaurant-assistant/internal/store"
)

const instructionSeparator = " | "

type Options struct {
	Location *time.Location
	// BillingRelease is the status a table moves to once its order is billed.
	BillingRelease domain.TableStatus
	Currency       string
}

// Engine owns the order lifecycle. Every mutation, along with the counter
// and table writes it implies, commits in one store transaction; events go
// out only after that commit.
type Engine struct {
	store   store.Store
	counter *counter.Allocator
	tables  *table.Engine
	pricer  *Pricer
	tax     *TaxPolicy
	pub     events.Publisher
	lg      *zap.Logger

	loc      *time.Location
	release  domain.TableStatus
	currency string
	now      func() time.Time
	newID    func() string
}

func NewEngine(s store.Store, alloc *counter.Allocator, tables *table.Engine, pricer *Pricer, tax *TaxPolicy,
	pub events.Publisher, opts Options, lg *zap.Logger) *Engine {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.BillingRelease != domain.TableCleaning {
		opts.BillingRelease = domain.TableAvailable
	}
	return &Engine{
		store:    s,
		counter:  alloc,
		tables:   tables,
		pricer:   pricer,
		tax:      tax,
		pub:      pub,
		lg:       lg,
		loc:      opts.Location,
		release:  opts.BillingRelease,
		currency: opts.Currency,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// SetClock replaces the time source.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

func (e *Engine) money(v float64) string {
	return fmt.Sprintf("%s%.2f", e.currency, v)
}

func requireTenant(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return domain.Errorf(domain.ErrMissingTenant, "A restaurant must be selected first")
	}
	return nil
}

// PlaceOrder validates the table, prices the lines, allocates the daily
// number, writes the order and seats it, all in one transaction. Any
// failure leaves no trace.
func (e *Engine) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (*domain.OrderResult, error) {
	if err := requireTenant(req.TenantID); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "An order needs at least one item")
	}
	orderType, ok := domain.ParseOrderType(req.OrderType)
	if !ok {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "%q is not an order type; use dine-in, takeaway, delivery or room-service", req.OrderType)
	}
	tableName := strings.TrimSpace(req.TableNumber)

	var (
		o       *domain.Order
		changes []table.Change
	)
	err := e.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		changes = nil
		var seat *domain.Table
		if tableName != "" {
			t, err := e.tables.ValidateAvailableTx(ctx, tx, req.TenantID, tableName, req.Floor)
			if err != nil {
				return err
			}
			seat = t
		}

		lines, err := e.pricer.PriceLines(ctx, req.TenantID, req.Items)
		if err != nil {
			return err
		}

		now := e.now()
		day := e.counter.DayKey(now)
		n, err := e.counter.NextOrderIDTx(ctx, tx, req.TenantID, day)
		if err != nil {
			return err
		}

		o = &domain.Order{
			ID:                  e.newID(),
			TenantID:            req.TenantID,
			Day:                 day,
			DailyOrderID:        n,
			OrderNumber:         counter.FormatOrderNumber(day, n),
			Items:               lines,
			Status:              domain.StatusPending,
			OrderType:           orderType,
			SpecialInstructions: strings.TrimSpace(req.SpecialInstructions),
			CreatedBy:           req.UserID,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if req.Customer != nil {
			o.Customer = *req.Customer
		}
		if seat != nil {
			o.TableNumber = seat.Name
		}
		e.tax.reprice(o)

		if err := tx.Orders().Create(ctx, o); err != nil {
			return err
		}
		if seat != nil {
			ch, err := e.tables.OccupyTx(ctx, tx, seat, o.ID, req.UserID)
			if err != nil {
				return err
			}
			changes = append(changes, ch)
		}
		return nil
	})
	if err != nil {
		e.lg.Info("order_rejected", zap.String("tenant_id", req.TenantID), zap.String("code", domain.CodeOf(err)), zap.Error(err))
		return nil, err
	}

	e.lg.Info("order_placed",
		zap.String("tenant_id", o.TenantID),
		zap.String("order_id", o.ID),
		zap.Int64("daily_order_id", o.DailyOrderID),
		zap.String("table", o.TableNumber),
		zap.Float64("final_amount", o.FinalAmount),
	)
	e.announce(ctx, domain.EventOrderPlaced, o, "", req.UserID)
	e.tables.Announce(ctx, changes...)

	return &domain.OrderResult{Order: o, Message: e.placedMessage(o)}, nil
}

func (e *Engine) placedMessage(o *domain.Order) string {
	parts := make([]string, 0, len(o.Items))
	for _, l := range o.Items {
		name := l.Name
		if l.Variant != nil {
			name += " (" + l.Variant.Name + ")"
		}
		parts = append(parts, fmt.Sprintf("%d x %s", l.Quantity, name))
	}
	where := ""
	if o.TableNumber != "" {
		where = " for table " + o.TableNumber
	}
	return fmt.Sprintf("Order #%d placed%s: %s. Total %s.", o.DailyOrderID, where, strings.Join(parts, ", "), e.money(o.FinalAmount))
}

// UpdateOrder changes lines, table, instructions or customer of an open order.
func (e *Engine) UpdateOrder(ctx context.Context, req domain.UpdateOrderRequest) (*domain.OrderResult, error) {
	if err := requireTenant(req.TenantID); err != nil {
		return nil, err
	}
	if len(req.ReplaceItems) == 0 && len(req.AddItems) == 0 && req.TableNumber == nil &&
		strings.TrimSpace(req.Instructions) == "" && req.Customer == nil {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "Tell me what to change on the order")
	}

	var (
		o       *domain.Order
		changes []table.Change
		notes   []string
	)
	err := e.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		changes, notes = nil, nil
		var err error
		o, err = e.openOrder(ctx, tx, req.TenantID, req.OrderID)
		if err != nil {
			return err
		}

		if len(req.ReplaceItems) > 0 {
			lines, err := e.pricer.PriceLines(ctx, req.TenantID, req.ReplaceItems)
			if err != nil {
				return err
			}
			o.Items = lines
			notes = append(notes, "items replaced")
		}
		if len(req.AddItems) > 0 {
			lines, err := e.pricer.PriceLines(ctx, req.TenantID, req.AddItems)
			if err != nil {
				return err
			}
			o.Items = append(o.Items, lines...)
			notes = append(notes, fmt.Sprintf("%d item(s) added", len(lines)))
		}

		if req.TableNumber != nil {
			before := o.TableNumber
			moved, err := e.moveTable(ctx, tx, o, strings.TrimSpace(*req.TableNumber), req.Floor, req.UserID)
			if err != nil {
				return err
			}
			changes = append(changes, moved...)
			switch {
			case o.TableNumber == before:
			case o.TableNumber == "":
				notes = append(notes, "table cleared")
			default:
				notes = append(notes, "moved to table "+o.TableNumber)
			}
		}

		if ins := strings.TrimSpace(req.Instructions); ins != "" {
			if o.SpecialInstructions == "" {
				o.SpecialInstructions = ins
			} else {
				o.SpecialInstructions += instructionSeparator + ins
			}
			notes = append(notes, "instructions noted")
		}
		if c := req.Customer; c != nil {
			mergeCustomer(&o.Customer, *c)
			notes = append(notes, "customer details updated")
		}

		e.tax.reprice(o)
		o.UpdatedBy = req.UserID
		o.UpdatedAt = e.now()
		return tx.Orders().Update(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	e.lg.Info("order_updated", zap.String("tenant_id", o.TenantID), zap.String("order_id", o.ID), zap.Strings("changes", notes))
	e.announce(ctx, domain.EventOrderUpdated, o, "", req.UserID)
	e.tables.Announce(ctx, changes...)

	msg := fmt.Sprintf("Order #%d updated", o.DailyOrderID)
	if len(notes) > 0 {
		msg += ": " + strings.Join(notes, ", ")
	}
	msg += fmt.Sprintf(". New total %s.", e.money(o.FinalAmount))
	return &domain.OrderResult{Order: o, Message: msg}, nil
}

// moveTable seats o at name, releasing whatever table it held. The new table
// is validated before anything is written. An empty name unseats the order.
func (e *Engine) moveTable(ctx context.Context, tx store.Tx, o *domain.Order, name, floor, by string) ([]table.Change, error) {
	var next *domain.Table
	if name != "" {
		t, err := e.tables.LookupTx(ctx, tx, o.TenantID, name, floor)
		if err != nil {
			return nil, err
		}
		if t.CurrentOrderID == o.ID {
			o.TableNumber = t.Name
			return nil, nil
		}
		if err := table.CheckAvailable(t); err != nil {
			return nil, err
		}
		next = t
	} else if o.TableNumber == "" {
		return nil, nil
	}

	var changes []table.Change
	released, err := e.tables.ReleaseForOrderTx(ctx, tx, o.TenantID, o.ID, domain.TableAvailable, by)
	if err != nil {
		return nil, err
	}
	changes = append(changes, released...)
	o.TableNumber = ""
	if next != nil {
		ch, err := e.tables.OccupyTx(ctx, tx, next, o.ID, by)
		if err != nil {
			return nil, err
		}
		changes = append(changes, ch)
		o.TableNumber = next.Name
	}
	return changes, nil
}

func mergeCustomer(dst *domain.CustomerInfo, src domain.CustomerInfo) {
	if v := strings.TrimSpace(src.Name); v != "" {
		dst.Name = v
	}
	if v := strings.TrimSpace(src.Phone); v != "" {
		dst.Phone = v
	}
	if v := strings.TrimSpace(src.Address); v != "" {
		dst.Address = v
	}
	if v := strings.TrimSpace(src.Room); v != "" {
		dst.Room = v
	}
}

// UpdateStatus moves an open order to any non-terminal status. Backward
// moves such as ready to pending are allowed.
func (e *Engine) UpdateStatus(ctx context.Context, tenantID, userID, ref, status string) (*domain.OrderResult, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	target, ok := domain.ParseOrderStatus(status)
	if !ok {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "%q is not an order status; use pending, preparing or ready", status)
	}
	switch target {
	case domain.StatusCompleted:
		return nil, domain.Errorf(domain.ErrInvalidArgument, "Orders are completed by billing them")
	case domain.StatusCancelled:
		return nil, domain.Errorf(domain.ErrInvalidArgument, "Use cancel order to cancel an order")
	}

	var (
		o   *domain.Order
		old domain.OrderStatus
	)
	err := e.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		o, err = e.openOrder(ctx, tx, tenantID, ref)
		if err != nil {
			return err
		}
		old = o.Status
		o.Status = target
		o.UpdatedBy = userID
		o.UpdatedAt = e.now()
		return tx.Orders().Update(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	e.lg.Info("order_status_changed", zap.String("tenant_id", tenantID), zap.String("order_id", o.ID),
		zap.String("old_status", string(old)), zap.String("new_status", string(target)))
	e.announce(ctx, domain.EventOrderStatusChanged, o, old, userID)
	return &domain.OrderResult{Order: o, Message: fmt.Sprintf("Order #%d is now %s.", o.DailyOrderID, target)}, nil
}

// CancelOrder cancels a pending or preparing order and frees its table.
func (e *Engine) CancelOrder(ctx context.Context, tenantID, userID, ref, reason string) (*domain.OrderResult, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	var (
		o       *domain.Order
		old     domain.OrderStatus
		changes []table.Change
	)
	err := e.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		changes = nil
		var err error
		o, err = e.lockOrder(ctx, tx, tenantID, ref)
		if err != nil {
			return err
		}
		if o.Status != domain.StatusPending && o.Status != domain.StatusPreparing {
			return domain.Errorf(domain.ErrInvalidCancellation, "Order #%d is %s and can no longer be cancelled", o.DailyOrderID, o.Status)
		}
		old = o.Status
		now := e.now()
		o.Status = domain.StatusCancelled
		o.CancelledAt = &now
		o.UpdatedBy = userID
		o.UpdatedAt = now
		if err := tx.Orders().Update(ctx, o); err != nil {
			return err
		}
		released, err := e.tables.ReleaseForOrderTx(ctx, tx, tenantID, o.ID, domain.TableAvailable, userID)
		if err != nil {
			return err
		}
		changes = append(changes, released...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.lg.Info("order_cancelled", zap.String("tenant_id", tenantID), zap.String("order_id", o.ID), zap.String("reason", reason))
	e.announce(ctx, domain.EventOrderCancelled, o, old, userID)
	e.tables.Announce(ctx, changes...)

	msg := fmt.Sprintf("Order #%d has been cancelled", o.DailyOrderID)
	if o.TableNumber != "" {
		msg += " and table " + o.TableNumber + " is free"
	}
	return &domain.OrderResult{Order: o, Message: msg + "."}, nil
}

// ApplyDiscount records a discount that billing uses unless it is given
// another one.
func (e *Engine) ApplyDiscount(ctx context.Context, tenantID, userID, ref string, amount float64) (*domain.OrderResult, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if amount < 0 {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "A discount cannot be negative")
	}
	var o *domain.Order
	err := e.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		o, err = e.openOrder(ctx, tx, tenantID, ref)
		if err != nil {
			return err
		}
		o.Discount = domain.Round2(amount)
		o.UpdatedBy = userID
		o.UpdatedAt = e.now()
		return tx.Orders().Update(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	e.lg.Info("order_discounted", zap.String("tenant_id", tenantID), zap.String("order_id", o.ID), zap.Float64("discount", o.Discount))
	e.announce(ctx, domain.EventOrderUpdated, o, "", userID)
	return &domain.OrderResult{
		Order:   o,
		Message: fmt.Sprintf("Discount of %s noted on order #%d.", e.money(o.Discount), o.DailyOrderID),
	}, nil
}

// CompleteBilling closes the order, records payment and frees the table.
// finalTotal is finalAmount minus the discount and is not floored at zero.
func (e *Engine) CompleteBilling(ctx context.Context, req domain.BillingRequest) (*domain.OrderResult, error) {
	if err := requireTenant(req.TenantID); err != nil {
		return nil, err
	}
	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if method == "" {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "How is the bill being paid?")
	}
	if req.Discount < 0 {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "A discount cannot be negative")
	}

	var (
		o       *domain.Order
		old     domain.OrderStatus
		changes []table.Change
	)
	err := e.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		changes = nil
		var err error
		o, err = e.lockOrder(ctx, tx, req.TenantID, req.OrderID)
		if err != nil {
			return err
		}
		switch o.Status {
		case domain.StatusCompleted:
			return domain.Errorf(domain.ErrAlreadyCompleted, "Order #%d has already been billed", o.DailyOrderID)
		case domain.StatusCancelled:
			return domain.Errorf(domain.ErrCannotBillCancelled, "Order #%d was cancelled and cannot be billed", o.DailyOrderID)
		}

		if req.Discount > 0 {
			o.Discount = domain.Round2(req.Discount)
		}
		now := e.now()
		old = o.Status
		o.FinalTotal = domain.Round2(o.FinalAmount - o.Discount)
		o.PaymentMethod = method
		o.Status = domain.StatusCompleted
		o.BilledAt = &now
		o.UpdatedBy = req.UserID
		o.UpdatedAt = now
		if err := tx.Orders().Update(ctx, o); err != nil {
			return err
		}
		released, err := e.tables.ReleaseForOrderTx(ctx, tx, req.TenantID, o.ID, e.release, req.UserID)
		if err != nil {
			return err
		}
		changes = append(changes, released...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.lg.Info("order_billed", zap.String("tenant_id", o.TenantID), zap.String("order_id", o.ID),
		zap.String("payment_method", o.PaymentMethod), zap.Float64("discount", o.Discount), zap.Float64("final_total", o.FinalTotal))
	e.announce(ctx, domain.EventOrderBilled, o, old, req.UserID)
	e.tables.Announce(ctx, changes...)

	msg := fmt.Sprintf("Order #%d billed: %s paid by %s", o.DailyOrderID, e.money(o.FinalTotal), o.PaymentMethod)
	if o.Discount > 0 {
		msg += fmt.Sprintf(" after a %s discount", e.money(o.Discount))
	}
	return &domain.OrderResult{Order: o, Message: msg + "."}, nil
}

func (e *Engine) announce(ctx context.Context, kind string, o *domain.Order, old domain.OrderStatus, by string) {
	ev := domain.Event{
		Kind:         kind,
		TenantID:     o.TenantID,
		OrderID:      o.ID,
		OrderNumber:  o.OrderNumber,
		DailyOrderID: o.DailyOrderID,
		TableNumber:  o.TableNumber,
		OldStatus:    string(old),
		NewStatus:    string(o.Status),
		Amount:       o.FinalAmount,
		ChangedBy:    by,
		OccurredAt:   o.UpdatedAt,
	}
	switch kind {
	case domain.EventOrderPlaced:
		ev.Items = o.Items
	case domain.EventOrderBilled:
		ev.Amount = o.FinalTotal
	}
	e.pub.Publish(ctx, ev)
}

var orderNumberRe = regexp.MustCompile(`(?i)^ORD_(\d{4})(\d{2})(\d{2})_(\d+)$`)

// lockOrder resolves ref as an order id, a display number such as
// ORD_20261014_007, or today's daily number ("7" or "#7"), and locks it.
func (e *Engine) lockOrder(ctx context.Context, tx store.Tx, tenantID, ref string) (*domain.Order, error) {
	o, err := e.findOrder(ctx, tx, tenantID, ref, true)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.Errorf(domain.ErrOrderNotFound, "I couldn't find order %s", strings.TrimSpace(ref))
	}
	return o, nil
}

// openOrder is lockOrder that also refuses completed and cancelled orders.
func (e *Engine) openOrder(ctx context.Context, tx store.Tx, tenantID, ref string) (*domain.Order, error) {
	o, err := e.lockOrder(ctx, tx, tenantID, ref)
	if err != nil {
		return nil, err
	}
	if o.Status.Terminal() {
		return nil, domain.Errorf(domain.ErrOrderClosed, "Order #%d is already %s and can't be changed", o.DailyOrderID, o.Status)
	}
	return o, nil
}

func (e *Engine) findOrder(ctx context.Context, tx store.Tx, tenantID, ref string, lock bool) (*domain.Order, error) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "#")
	if ref == "" {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "Which order? Give me the order number")
	}

	var (
		day   string
		daily int64
	)
	if m := orderNumberRe.FindStringSubmatch(ref); m != nil {
		day = m[1] + "-" + m[2] + "-" + m[3]
		daily, _ = strconv.ParseInt(m[4], 10, 64)
	} else if n, err := strconv.ParseInt(ref, 10, 64); err == nil && n > 0 {
		day = domain.DayKey(e.now(), e.loc)
		daily = n
	}

	if day != "" {
		o, err := tx.Orders().GetByDailyID(ctx, tenantID, day, daily)
		if err != nil || o == nil || !lock {
			return o, err
		}
		return tx.Orders().GetForUpdate(ctx, tenantID, o.ID)
	}
	if lock {
		return tx.Orders().GetForUpdate(ctx, tenantID, ref)
	}
	return tx.Orders().Get(ctx, tenantID, ref)
}
