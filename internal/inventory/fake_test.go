package inventory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/concert-ticketing/internal/model"
	"github.com/iliyamo/concert-ticketing/internal/queue"
)

type inTxKey struct{}

// memStore is an in-memory TicketStore and Transactor.  A transaction
// holds one store-wide mutex, which is stricter than the per-concert
// row lock of MySQL but gives the same guarantee for capacity checks.
// A failed transaction restores the snapshot taken when it began.
type memStore struct {
	mu       sync.Mutex
	nextID   uint64
	tickets  map[uint64]model.Ticket
	concerts map[uint64]model.Concert
	users    map[uuid.UUID]model.User
	lastList string
	failOn   string
}

func newMemStore() *memStore {
	return &memStore{
		tickets:  map[uint64]model.Ticket{},
		concerts: map[uint64]model.Concert{},
		users:    map[uuid.UUID]model.User{},
	}
}

func (m *memStore) addConcert(id uint64, title string, capacity int) {
	m.concerts[id] = model.Concert{ID: id, Title: title, HallID: id, HallCapacity: capacity}
}

func (m *memStore) addUser(email string) uuid.UUID {
	id := uuid.New()
	m.users[id] = model.User{ID: id, Email: email, Role: model.RoleCustomer}
	return id
}

func inTx(ctx context.Context) bool { return ctx.Value(inTxKey{}) != nil }

// guard locks the store unless ctx already belongs to a transaction.
func (m *memStore) guard(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *memStore) fail(op string) error {
	if m.failOn == op {
		return errors.New("store failure in " + op)
	}
	return nil
}

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make(map[uint64]model.Ticket, len(m.tickets))
	for k, v := range m.tickets {
		snapshot[k] = v
	}
	next := m.nextID
	if err := fn(context.WithValue(ctx, inTxKey{}, true)); err != nil {
		m.tickets = snapshot
		m.nextID = next
		return err
	}
	return nil
}

func (m *memStore) GetConcert(ctx context.Context, id uint64) (model.Concert, error) {
	defer m.guard(ctx)()
	c, ok := m.concerts[id]
	if !ok {
		return model.Concert{}, model.ErrConcertNotFound
	}
	return c, nil
}

func (m *memStore) view(t model.Ticket) model.Ticket {
	t.ConcertTitle = m.concerts[t.ConcertID].Title
	if t.BuyerID != nil {
		t.BuyerEmail = m.users[*t.BuyerID].Email
	}
	return t
}

func (m *memStore) LockConcert(ctx context.Context, concertID uint64) (int, error) {
	if !inTx(ctx) {
		return 0, errors.New("lock concert: no transaction in context")
	}
	c, ok := m.concerts[concertID]
	if !ok {
		return 0, model.ErrConcertNotFound
	}
	return c.HallCapacity, nil
}

func (m *memStore) Create(ctx context.Context, t *model.Ticket) error {
	defer m.guard(ctx)()
	if err := m.fail("create"); err != nil {
		return err
	}
	m.nextID++
	t.ID = m.nextID
	stored := *t
	stored.ConcertTitle, stored.BuyerEmail = "", ""
	m.tickets[t.ID] = stored
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id uint64) (model.Ticket, error) {
	defer m.guard(ctx)()
	t, ok := m.tickets[id]
	if !ok {
		return model.Ticket{}, model.ErrTicketNotFound
	}
	return m.view(t), nil
}

func (m *memStore) GetForUpdate(ctx context.Context, id uint64) (model.Ticket, error) {
	t, ok := m.tickets[id]
	if !ok {
		return model.Ticket{}, model.ErrTicketNotFound
	}
	return t, nil
}

func (m *memStore) sorted(keep func(model.Ticket) bool) []model.Ticket {
	out := []model.Ticket{}
	for _, t := range m.tickets {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) ReservedByBuyerForUpdate(ctx context.Context, concertID uint64, buyerID uuid.UUID, limit int) ([]model.Ticket, error) {
	out := m.sorted(func(t model.Ticket) bool {
		return t.ConcertID == concertID && t.Status == model.TicketReserved && t.OwnedBy(buyerID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) MarkSold(ctx context.Context, id uint64, paymentMethod string) error {
	if err := m.fail("mark_sold"); err != nil {
		return err
	}
	t := m.tickets[id]
	t.Status = model.TicketSold
	t.ReservationExpiration = nil
	t.PaymentMethod = &paymentMethod
	m.tickets[id] = t
	return nil
}

func (m *memStore) MarkReturned(ctx context.Context, id uint64, reason string, at time.Time) error {
	t := m.tickets[id]
	t.Status = model.TicketAvailable
	t.BuyerID = nil
	t.ReturnReason = &reason
	t.ReturnTime = &at
	m.tickets[id] = t
	return nil
}

func (m *memStore) countOccupied(concertID uint64) int {
	n := 0
	for _, t := range m.tickets {
		if t.ConcertID == concertID && t.Status.Occupies() {
			n++
		}
	}
	return n
}

func (m *memStore) CountOccupied(ctx context.Context, concertID uint64) (int, error) {
	defer m.guard(ctx)()
	return m.countOccupied(concertID), nil
}

func (m *memStore) CountByStatus(ctx context.Context, concertID *uint64) (map[model.TicketStatus]int, error) {
	defer m.guard(ctx)()
	counts := map[model.TicketStatus]int{model.TicketAvailable: 0, model.TicketReserved: 0, model.TicketSold: 0}
	for _, t := range m.tickets {
		if concertID == nil || t.ConcertID == *concertID {
			counts[t.Status]++
		}
	}
	return counts, nil
}

func (m *memStore) ExistsByConcertAndSeatWithStatus(ctx context.Context, concertID uint64, seat string, statuses []model.TicketStatus) (bool, error) {
	for _, t := range m.tickets {
		if t.ConcertID != concertID || t.SeatNumber != seat {
			continue
		}
		for _, s := range statuses {
			if t.Status == s {
				return true, nil
			}
		}
	}
	return false, nil
}

func lapsed(t model.Ticket, cutoff time.Time, concertID *uint64) bool {
	return t.Status == model.TicketReserved && t.ReservationExpiration != nil &&
		t.ReservationExpiration.Before(cutoff) && (concertID == nil || t.ConcertID == *concertID)
}

func (m *memStore) ReleaseExpired(ctx context.Context, cutoff time.Time, concertID *uint64) (int64, error) {
	defer m.guard(ctx)()
	var n int64
	for id, t := range m.tickets {
		if lapsed(t, cutoff, concertID) {
			t.Status = model.TicketAvailable
			t.BuyerID = nil
			t.ReservationExpiration = nil
			m.tickets[id] = t
			n++
		}
	}
	return n, nil
}

func (m *memStore) DeleteExpired(ctx context.Context, cutoff time.Time, concertID *uint64) (int64, error) {
	defer m.guard(ctx)()
	var n int64
	for id, t := range m.tickets {
		if lapsed(t, cutoff, concertID) {
			delete(m.tickets, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) page(ctx context.Context, name string, keep func(model.Ticket) bool, page model.PageRequest) (model.Page[model.Ticket], error) {
	defer m.guard(ctx)()
	m.lastList = name
	all := m.sorted(func(t model.Ticket) bool { return keep(m.view(t)) })
	items := all
	if page.Size > 0 {
		start := page.Offset()
		if start > len(all) {
			start = len(all)
		}
		end := start + page.Size
		if end > len(all) {
			end = len(all)
		}
		items = all[start:end]
	}
	for i := range items {
		items[i] = m.view(items[i])
	}
	return model.Page[model.Ticket]{Items: items, Total: int64(len(all)), Number: page.Number, Size: page.Size}, nil
}

func (m *memStore) ListAll(ctx context.Context, page model.PageRequest) (model.Page[model.Ticket], error) {
	return m.page(ctx, "all", func(model.Ticket) bool { return true }, page)
}

func (m *memStore) ListByConcert(ctx context.Context, concertID uint64, page model.PageRequest) (model.Page[model.Ticket], error) {
	return m.page(ctx, "concert", func(t model.Ticket) bool { return t.ConcertID == concertID }, page)
}

func (m *memStore) ListByBuyer(ctx context.Context, buyerID uuid.UUID, page model.PageRequest) (model.Page[model.Ticket], error) {
	return m.page(ctx, "buyer", func(t model.Ticket) bool { return t.OwnedBy(buyerID) }, page)
}

func (m *memStore) ListByStatus(ctx context.Context, status model.TicketStatus, page model.PageRequest) (model.Page[model.Ticket], error) {
	return m.page(ctx, "status", func(t model.Ticket) bool { return t.Status == status }, page)
}

func (m *memStore) ListByConcertName(ctx context.Context, name string, page model.PageRequest) (model.Page[model.Ticket], error) {
	name = strings.ToLower(name)
	return m.page(ctx, "concert_name", func(t model.Ticket) bool {
		return strings.Contains(strings.ToLower(t.ConcertTitle), name)
	}, page)
}

func (m *memStore) ListByBuyerEmail(ctx context.Context, email string, page model.PageRequest) (model.Page[model.Ticket], error) {
	email = strings.ToLower(email)
	return m.page(ctx, "buyer_email", func(t model.Ticket) bool {
		return t.BuyerEmail != "" && strings.Contains(strings.ToLower(t.BuyerEmail), email)
	}, page)
}

func (m *memStore) ListByPurchaseRange(ctx context.Context, from, to time.Time, page model.PageRequest) (model.Page[model.Ticket], error) {
	return m.page(ctx, "purchase_range", func(t model.Ticket) bool {
		return !t.PurchaseTimestamp.Before(from) && !t.PurchaseTimestamp.After(to)
	}, page)
}

type memConcerts struct{ m *memStore }

func (d memConcerts) GetByID(ctx context.Context, id uint64) (model.Concert, error) {
	return d.m.GetConcert(ctx, id)
}

type memUsers struct{ m *memStore }

func (d memUsers) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	defer d.m.guard(ctx)()
	u, ok := d.m.users[id]
	if !ok {
		return model.User{}, model.ErrBuyerNotFound
	}
	return u, nil
}

func (d memUsers) GetByEmail(ctx context.Context, email string) (model.User, error) {
	defer d.m.guard(ctx)()
	for _, u := range d.m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return model.User{}, model.ErrBuyerNotFound
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.TicketEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.TicketEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	svc    *Service
	store  *memStore
	events *recordingPublisher
	clock  *clock
}

func newFixture(cfg Config) *fixture {
	store := newMemStore()
	events := &recordingPublisher{}
	clk := &clock{t: time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)}
	svc := New(Deps{
		Tx:       store,
		Tickets:  store,
		Concerts: memConcerts{store},
		Users:    memUsers{store},
		Events:   events,
		Now:      clk.Now,
	}, cfg)
	return &fixture{svc: svc, store: store, events: events, clock: clk}
}

func (f *fixture) occupied(concertID uint64) int {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.countOccupied(concertID)
}

func (f *fixture) rows() int {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return len(f.store.tickets)
}
