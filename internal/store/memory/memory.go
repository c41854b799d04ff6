// Package memory is an in-process Store. A transaction works on a private
// copy of the state under one mutex and swaps it in on commit, so concurrent
// callers observe each other's writes exactly as they would in postgres.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"restaurant-assistant/internal/domain"
	"restaurant-assistant/internal/store"
)

type Floor struct {
	ID        string
	TenantID  string
	Name      string
	SortOrder int
}

type state struct {
	floors   map[string]Floor
	tables   map[string]domain.Table
	orders   map[string]domain.Order
	counters map[string]int64
	sessions map[string]domain.Session
	messages map[string][]domain.Message
}

func newState() *state {
	return &state{
		floors:   map[string]Floor{},
		tables:   map[string]domain.Table{},
		orders:   map[string]domain.Order{},
		counters: map[string]int64{},
		sessions: map[string]domain.Session{},
		messages: map[string][]domain.Message{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.floors {
		c.floors[k] = v
	}
	for k, v := range s.tables {
		c.tables[k] = cloneTable(v)
	}
	for k, v := range s.orders {
		c.orders[k] = cloneOrder(v)
	}
	for k, v := range s.counters {
		c.counters[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = cloneSession(v)
	}
	for k, v := range s.messages {
		c.messages[k] = append([]domain.Message(nil), v...)
	}
	return c
}

type Store struct {
	mu    sync.Mutex
	state *state
}

func New() *Store {
	return &Store{state: newState()}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// AddFloor and AddTable seed the table hierarchy.
func (s *Store) AddFloor(f Floor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.floors[f.ID] = f
}

func (s *Store) AddTable(t domain.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Status == "" {
		t.Status = domain.TableAvailable
	}
	if f, ok := s.state.floors[t.FloorID]; ok {
		t.FloorName = f.Name
	}
	s.state.tables[t.ID] = cloneTable(t)
}

type tx struct{ st *state }

func (t *tx) Orders() store.OrderRepository     { return orders{t.st} }
func (t *tx) Tables() store.TableRepository     { return tables{t.st} }
func (t *tx) Counters() store.CounterRepository { return counters{t.st} }
func (t *tx) Sessions() store.SessionRepository { return sessions{t.st} }

type counters struct{ st *state }

func (c counters) Increment(_ context.Context, tenantID, day string) (int64, error) {
	key := tenantID + "|" + day
	c.st.counters[key]++
	return c.st.counters[key], nil
}

type orders struct{ st *state }

func (r orders) Create(_ context.Context, o *domain.Order) error {
	r.st.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (r orders) Get(_ context.Context, tenantID, id string) (*domain.Order, error) {
	o, ok := r.st.orders[id]
	if !ok || o.TenantID != tenantID {
		return nil, nil
	}
	c := cloneOrder(o)
	return &c, nil
}

func (r orders) GetForUpdate(ctx context.Context, tenantID, id string) (*domain.Order, error) {
	return r.Get(ctx, tenantID, id)
}

func (r orders) GetByDailyID(_ context.Context, tenantID, day string, dailyID int64) (*domain.Order, error) {
	for _, o := range r.st.orders {
		if o.TenantID == tenantID && o.Day == day && o.DailyOrderID == dailyID {
			c := cloneOrder(o)
			return &c, nil
		}
	}
	return nil, nil
}

func (r orders) Update(_ context.Context, o *domain.Order) error {
	cur, ok := r.st.orders[o.ID]
	if !ok || cur.TenantID != o.TenantID {
		return domain.Errorf(domain.ErrOrderNotFound, "Order %s was not found", o.ID)
	}
	r.st.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (r orders) List(_ context.Context, tenantID string, f store.OrderFilter) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range r.st.orders {
		if o.TenantID != tenantID || !matches(o, f) {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].DailyOrderID < out[j].DailyOrderID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matches(o domain.Order, f store.OrderFilter) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if o.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.TableNumber != "" && !strings.EqualFold(o.TableNumber, f.TableNumber) {
		return false
	}
	if !f.From.IsZero() && o.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !o.CreatedAt.Before(f.To) {
		return false
	}
	return true
}

type tables struct{ st *state }

func (r tables) sorted(tenantID, floor string) []domain.Table {
	var out []domain.Table
	for _, t := range r.st.tables {
		if t.TenantID != tenantID {
			continue
		}
		if floor != "" && !strings.EqualFold(t.FloorID, floor) && !strings.EqualFold(r.st.floors[t.FloorID].Name, floor) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		fi, fj := r.st.floors[out[i].FloorID], r.st.floors[out[j].FloorID]
		if fi.SortOrder != fj.SortOrder {
			return fi.SortOrder < fj.SortOrder
		}
		if out[i].FloorID != out[j].FloorID {
			return out[i].FloorID < out[j].FloorID
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r tables) FindByName(_ context.Context, tenantID, name, floor string) (*domain.Table, error) {
	name = strings.TrimSpace(name)
	for _, t := range r.sorted(tenantID, floor) {
		if strings.EqualFold(t.Name, name) {
			c := cloneTable(t)
			return &c, nil
		}
	}
	return nil, nil
}

func (r tables) Get(_ context.Context, tenantID, id string) (*domain.Table, error) {
	t, ok := r.st.tables[id]
	if !ok || t.TenantID != tenantID {
		return nil, nil
	}
	c := cloneTable(t)
	return &c, nil
}

func (r tables) Save(_ context.Context, t *domain.Table) error {
	cur, ok := r.st.tables[t.ID]
	if !ok || cur.TenantID != t.TenantID {
		return domain.Errorf(domain.ErrTableNotFound, "Table %s was not found", t.Name)
	}
	r.st.tables[t.ID] = cloneTable(*t)
	return nil
}

func (r tables) List(_ context.Context, tenantID, floor string) ([]domain.Table, error) {
	out := r.sorted(tenantID, floor)
	for i := range out {
		out[i] = cloneTable(out[i])
	}
	return out, nil
}

type sessions struct{ st *state }

func (r sessions) Create(_ context.Context, s *domain.Session) error {
	r.st.sessions[s.ID] = cloneSession(*s)
	return nil
}

func (r sessions) Get(_ context.Context, tenantID, id string) (*domain.Session, error) {
	s, ok := r.st.sessions[id]
	if !ok || s.TenantID != tenantID {
		return nil, nil
	}
	c := cloneSession(s)
	return &c, nil
}

func (r sessions) GetForUpdate(ctx context.Context, tenantID, id string) (*domain.Session, error) {
	return r.Get(ctx, tenantID, id)
}

func (r sessions) Update(_ context.Context, s *domain.Session) error {
	cur, ok := r.st.sessions[s.ID]
	if !ok || cur.TenantID != s.TenantID {
		return domain.Errorf(domain.ErrSessionNotFound, "Session %s was not found", s.ID)
	}
	r.st.sessions[s.ID] = cloneSession(*s)
	return nil
}

func (r sessions) AppendMessage(_ context.Context, m *domain.Message) error {
	r.st.messages[m.SessionID] = append(r.st.messages[m.SessionID], *m)
	return nil
}

func (r sessions) ListMessages(_ context.Context, sessionID string) ([]domain.Message, error) {
	return append([]domain.Message(nil), r.st.messages[sessionID]...), nil
}

func (r sessions) ListStartedBetween(_ context.Context, tenantID, userID string, from, to time.Time) ([]domain.Session, error) {
	var out []domain.Session
	for _, s := range r.st.sessions {
		if s.TenantID != tenantID || s.UserID != userID {
			continue
		}
		if s.StartedAt.Before(from) || !s.StartedAt.Before(to) {
			continue
		}
		out = append(out, cloneSession(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderLine(nil), o.Items...)
	for i := range o.Items {
		if v := o.Items[i].Variant; v != nil {
			vc := *v
			o.Items[i].Variant = &vc
		}
	}
	o.TaxBreakdown = append([]domain.TaxLine(nil), o.TaxBreakdown...)
	return o
}

func cloneTable(t domain.Table) domain.Table {
	if t.Reservation != nil {
		r := *t.Reservation
		t.Reservation = &r
	}
	return t
}

func cloneSession(s domain.Session) domain.Session {
	s.ActionsPerformed = append([]domain.ActionRecord(nil), s.ActionsPerformed...)
	return s
}
