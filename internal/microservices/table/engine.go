package table

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"restaurant-assistant/internal/domain"
	"restaurant-assistant/internal/microservices/events"
	"restaurant-assistant/internal/store"
)

// Change is one committed status transition, announced after commit.
type Change struct {
	Table     domain.Table
	OldStatus domain.TableStatus
	By        string
}

type Engine struct {
	store store.Store
	pub   events.Publisher
	lg    *zap.Logger
	now   func() time.Time
}

func NewEngine(s store.Store, pub events.Publisher, lg *zap.Logger) *Engine {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Engine{store: s, pub: pub, lg: lg, now: func() time.Time { return time.Now().UTC() }}
}

// SetClock replaces the time source.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// applyStatus is the only place a table's status is written. occupied
// always carries an order id and every other status carries none; leaving
// occupied or reserved for available drops the reservation too.
func applyStatus(t *domain.Table, status domain.TableStatus, orderID string, now time.Time) error {
	switch status {
	case domain.TableOccupied:
		if strings.TrimSpace(orderID) == "" {
			return domain.Errorf(domain.ErrInvalidArgument, "Table %s can only be occupied by an order", t.Name)
		}
		if t.Status != domain.TableOccupied || t.CurrentOrderID != orderID || t.OccupiedAt == nil {
			ts := now
			t.OccupiedAt = &ts
		}
		t.CurrentOrderID = orderID
		t.Reservation = nil
	case domain.TableAvailable, domain.TableCleaning:
		t.CurrentOrderID = ""
		t.Reservation = nil
		t.OccupiedAt = nil
	case domain.TableReserved:
		t.CurrentOrderID = ""
		t.OccupiedAt = nil
	default:
		return domain.Errorf(domain.ErrInvalidArgument, "%q is not a table status", status)
	}
	t.Status = status
	t.UpdatedAt = now
	return nil
}

func describe(name, floor string) string {
	if floor != "" {
		return "Table " + name + " on " + floor
	}
	return "Table " + name
}

func (e *Engine) find(ctx context.Context, tx store.Tx, tenantID, name, floor string) (*domain.Table, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, domain.Errorf(domain.ErrMissingTenant, "A restaurant must be selected first")
	}
	if strings.TrimSpace(name) == "" {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "A table number is required")
	}
	t, err := tx.Tables().FindByName(ctx, tenantID, strings.TrimSpace(name), strings.TrimSpace(floor))
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, domain.Errorf(domain.ErrTableNotFound, "%s was not found", describe(name, floor))
	}
	return t, nil
}

func (e *Engine) save(ctx context.Context, tx store.Tx, t *domain.Table, status domain.TableStatus, orderID, by string) (Change, error) {
	old := t.Status
	if err := applyStatus(t, status, orderID, e.now()); err != nil {
		return Change{}, err
	}
	if err := tx.Tables().Save(ctx, t); err != nil {
		return Change{}, err
	}
	return Change{Table: *t, OldStatus: old, By: by}, nil
}

// LookupTx locks the table named name, scoped to floor when given.
func (e *Engine) LookupTx(ctx context.Context, tx store.Tx, tenantID, name, floor string) (*domain.Table, error) {
	return e.find(ctx, tx, tenantID, name, floor)
}

// CheckAvailable reports TableUnavailable unless t can take a new order.
func CheckAvailable(t *domain.Table) error {
	if t.Status != domain.TableAvailable {
		return domain.Errorf(domain.ErrTableUnavailable, "Table %s is currently %s", t.Name, t.Status)
	}
	return nil
}

// ValidateAvailableTx locks the table and returns it when it can be seated.
func (e *Engine) ValidateAvailableTx(ctx context.Context, tx store.Tx, tenantID, name, floor string) (*domain.Table, error) {
	t, err := e.find(ctx, tx, tenantID, name, floor)
	if err != nil {
		return nil, err
	}
	if err := CheckAvailable(t); err != nil {
		return nil, err
	}
	return t, nil
}

// OccupyTx seats orderID at a table already loaded in tx.
func (e *Engine) OccupyTx(ctx context.Context, tx store.Tx, t *domain.Table, orderID, by string) (Change, error) {
	return e.save(ctx, tx, t, domain.TableOccupied, orderID, by)
}

// ReleaseForOrderTx frees every table orderID occupies, moving each to
// target. An empty result means no table pointed at the order.
func (e *Engine) ReleaseForOrderTx(ctx context.Context, tx store.Tx, tenantID, orderID string, target domain.TableStatus, by string) ([]Change, error) {
	if orderID == "" {
		return nil, nil
	}
	all, err := tx.Tables().List(ctx, tenantID, "")
	if err != nil {
		return nil, err
	}
	var changes []Change
	for _, candidate := range all {
		if candidate.CurrentOrderID != orderID {
			continue
		}
		// Re-read under lock; the listing is not.
		t, err := tx.Tables().Get(ctx, tenantID, candidate.ID)
		if err != nil {
			return nil, err
		}
		if t == nil || t.CurrentOrderID != orderID {
			continue
		}
		ch, err := e.save(ctx, tx, t, target, "", by)
		if err != nil {
			return nil, err
		}
		changes = append(changes, ch)
	}
	return changes, nil
}

// Announce publishes committed changes.
func (e *Engine) Announce(ctx context.Context, changes ...Change) {
	for _, c := range changes {
		if c.OldStatus == c.Table.Status && c.Table.Status != domain.TableOccupied {
			continue
		}
		e.lg.Info("table_status_changed",
			zap.String("tenant_id", c.Table.TenantID),
			zap.String("table", c.Table.Name),
			zap.String("old_status", string(c.OldStatus)),
			zap.String("new_status", string(c.Table.Status)),
			zap.String("order_id", c.Table.CurrentOrderID),
		)
		e.pub.Publish(ctx, domain.Event{
			Kind:        domain.EventTableStatusChanged,
			TenantID:    c.Table.TenantID,
			OrderID:     c.Table.CurrentOrderID,
			TableNumber: c.Table.Name,
			OldStatus:   string(c.OldStatus),
			NewStatus:   string(c.Table.Status),
			ChangedBy:   c.By,
			OccurredAt:  c.Table.UpdatedAt,
		})
	}
}

// mutate runs fn in a transaction and announces its change after commit.
func (e *Engine) mutate(ctx context.Context, fn func(ctx context.Context, tx store.Tx) (Change, error)) (*domain.Table, error) {
	var ch Change
	err := e.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		ch, err = fn(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.Announce(ctx, ch)
	t := ch.Table
	return &t, nil
}

// ValidateAvailable reports TableNotFound or TableUnavailable, or nil when
// the table can take a new order.
func (e *Engine) ValidateAvailable(ctx context.Context, tenantID, name, floor string) error {
	return e.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := e.ValidateAvailableTx(ctx, tx, tenantID, name, floor)
		return err
	})
}

// Occupy seats orderID. An available or reserved table can be occupied; a
// table held by another order or being cleaned cannot.
func (e *Engine) Occupy(ctx context.Context, tenantID, name, floor, orderID, by string) (*domain.Table, error) {
	return e.mutate(ctx, func(ctx context.Context, tx store.Tx) (Change, error) {
		t, err := e.find(ctx, tx, tenantID, name, floor)
		if err != nil {
			return Change{}, err
		}
		return e.seatTx(ctx, tx, t, orderID, by)
	})
}

// seatTx occupies t with an open order that is not seated anywhere else,
// and points the order at t.
func (e *Engine) seatTx(ctx context.Context, tx store.Tx, t *domain.Table, orderID, by string) (Change, error) {
	o, err := e.checkOccupiable(ctx, tx, t, orderID)
	if err != nil {
		return Change{}, err
	}
	ch, err := e.OccupyTx(ctx, tx, t, o.ID, by)
	if err != nil {
		return Change{}, err
	}
	if o.TableNumber != t.Name {
		o.TableNumber = t.Name
		o.UpdatedBy = by
		o.UpdatedAt = e.now()
		if err := tx.Orders().Update(ctx, o); err != nil {
			return Change{}, err
		}
	}
	return ch, nil
}

func (e *Engine) checkOccupiable(ctx context.Context, tx store.Tx, t *domain.Table, orderID string) (*domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "Table %s can only be occupied by an order", t.Name)
	}
	switch t.Status {
	case domain.TableAvailable, domain.TableReserved:
	case domain.TableOccupied:
		if t.CurrentOrderID != orderID {
			return nil, domain.Errorf(domain.ErrTableUnavailable, "Table %s is currently occupied", t.Name)
		}
	default:
		return nil, domain.Errorf(domain.ErrTableUnavailable, "Table %s is currently %s", t.Name, t.Status)
	}
	o, err := tx.Orders().Get(ctx, t.TenantID, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.Errorf(domain.ErrOrderNotFound, "Order %s was not found", orderID)
	}
	if o.Status.Terminal() {
		return nil, domain.Errorf(domain.ErrOrderClosed, "Order #%d is already %s", o.DailyOrderID, o.Status)
	}
	all, err := tx.Tables().List(ctx, t.TenantID, "")
	if err != nil {
		return nil, err
	}
	for _, other := range all {
		if other.ID != t.ID && other.CurrentOrderID == orderID {
			return nil, domain.Errorf(domain.ErrTableUnavailable,
				"Order #%d is already seated at table %s; move the order instead", o.DailyOrderID, other.Name)
		}
	}
	return o, nil
}

// Release frees a table and clears its order and reservation.
func (e *Engine) Release(ctx context.Context, tenantID, name, floor, by string) (*domain.Table, error) {
	return e.mutate(ctx, func(ctx context.Context, tx store.Tx) (Change, error) {
		t, err := e.find(ctx, tx, tenantID, name, floor)
		if err != nil {
			return Change{}, err
		}
		return e.save(ctx, tx, t, domain.TableAvailable, "", by)
	})
}

// Reserve holds an available table for a party.
func (e *Engine) Reserve(ctx context.Context, req domain.ReserveRequest, by string) (*domain.Table, error) {
	if req.GuestCount < 1 {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "A reservation needs at least one guest")
	}
	return e.mutate(ctx, func(ctx context.Context, tx store.Tx) (Change, error) {
		t, err := e.find(ctx, tx, req.TenantID, req.TableNumber, req.Floor)
		if err != nil {
			return Change{}, err
		}
		if t.Status != domain.TableAvailable {
			return Change{}, domain.Errorf(domain.ErrTableUnavailable, "Table %s is currently %s", t.Name, t.Status)
		}
		if t.Capacity > 0 && req.GuestCount > t.Capacity {
			return Change{}, domain.Errorf(domain.ErrInvalidArgument, "Table %s seats %d, not %d", t.Name, t.Capacity, req.GuestCount)
		}
		old := t.Status
		if err := applyStatus(t, domain.TableReserved, "", e.now()); err != nil {
			return Change{}, err
		}
		t.Reservation = &domain.Reservation{
			GuestCount:    req.GuestCount,
			Time:          req.Time,
			CustomerName:  req.CustomerName,
			CustomerPhone: req.CustomerPhone,
		}
		if err := tx.Tables().Save(ctx, t); err != nil {
			return Change{}, err
		}
		return Change{Table: *t, OldStatus: old, By: by}, nil
	})
}

// SetStatus is the operator override. available clears the table exactly as
// Release does; occupied needs an open order; reserved goes through Reserve.
func (e *Engine) SetStatus(ctx context.Context, tenantID, name, floor, status, orderID, by string) (*domain.Table, error) {
	target, ok := domain.ParseTableStatus(status)
	if !ok {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "%q is not a table status; use available, occupied or cleaning", status)
	}
	if target == domain.TableReserved {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "Use a reservation to mark table %s reserved", name)
	}
	return e.mutate(ctx, func(ctx context.Context, tx store.Tx) (Change, error) {
		t, err := e.find(ctx, tx, tenantID, name, floor)
		if err != nil {
			return Change{}, err
		}
		if target == domain.TableOccupied {
			return e.seatTx(ctx, tx, t, orderID, by)
		}
		return e.save(ctx, tx, t, target, orderID, by)
	})
}

func (e *Engine) Get(ctx context.Context, tenantID, name, floor string) (*domain.Table, error) {
	var out *domain.Table
	err := e.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		t, err := e.find(ctx, tx, tenantID, name, floor)
		out = t
		return err
	})
	return out, err
}

// List returns the tenant's tables, optionally narrowed to a floor and a status.
func (e *Engine) List(ctx context.Context, tenantID, floor, status string) ([]domain.Table, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, domain.Errorf(domain.ErrMissingTenant, "A restaurant must be selected first")
	}
	var want domain.TableStatus
	if status != "" {
		s, ok := domain.ParseTableStatus(status)
		if !ok {
			return nil, domain.Errorf(domain.ErrInvalidArgument, "%q is not a table status", status)
		}
		want = s
	}
	var out []domain.Table
	err := e.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		all, err := tx.Tables().List(ctx, tenantID, strings.TrimSpace(floor))
		if err != nil {
			return err
		}
		for _, t := range all {
			if want == "" || t.Status == want {
				out = append(out, t)
			}
		}
		return nil
	})
	return out, err
}

func (e *Engine) Summary(ctx context.Context, tenantID, floor string) (domain.TablesSummary, error) {
	tables, err := e.List(ctx, tenantID, floor, "")
	if err != nil {
		return domain.TablesSummary{}, err
	}
	var s domain.TablesSummary
	for _, t := range tables {
		s.Total++
		switch t.Status {
		case domain.TableAvailable:
			s.Available++
		case domain.TableOccupied:
			s.Occupied++
		case domain.TableReserved:
			s.Reserved++
		case domain.TableCleaning:
			s.Cleaning++
		}
	}
	return s, nil
}
