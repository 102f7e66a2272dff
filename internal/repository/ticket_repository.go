package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/concert-ticketing/internal/model"
)

// TicketRepo provides persistence for the tickets table.  Every method
// runs inside the transaction carried by ctx when there is one (see
// TxManager), otherwise directly on the pool.  All timestamps are
// stored and compared in UTC.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// ticketView selects a ticket together with its concert title and
// buyer email.  It must not be combined with FOR UPDATE: locking reads
// use ticketColumns on the tickets table alone so joined rows are not
// locked.
const ticketView = `SELECT t.id, t.concert_id, c.title, t.buyer_id, COALESCE(u.email, ''), t.seat_number,
       t.purchase_timestamp, t.status, t.reservation_expiration, t.payment_method, t.return_reason, t.return_time
FROM tickets t
JOIN concerts c ON c.id = t.concert_id
LEFT JOIN users u ON u.id = t.buyer_id`

const ticketColumns = `SELECT t.id, t.concert_id, '', t.buyer_id, '', t.seat_number,
       t.purchase_timestamp, t.status, t.reservation_expiration, t.payment_method, t.return_reason, t.return_time
FROM tickets t`

const ticketFrom = ` FROM tickets t
JOIN concerts c ON c.id = t.concert_id
LEFT JOIN users u ON u.id = t.buyer_id`

// sortColumns maps the sort fields accepted from clients to columns.
// Unknown fields fall back to ordering by id.
var sortColumns = map[string]string{
	"id":                     "t.id",
	"concertId":              "t.concert_id",
	"concert_id":             "t.concert_id",
	"seatNumber":             "t.seat_number",
	"seat_number":            "t.seat_number",
	"status":                 "t.status",
	"purchaseTimestamp":      "t.purchase_timestamp",
	"purchase_timestamp":     "t.purchase_timestamp",
	"reservationExpiration":  "t.reservation_expiration",
	"reservation_expiration": "t.reservation_expiration",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(s rowScanner) (model.Ticket, error) {
	var (
		t          model.Ticket
		buyer      uuid.NullUUID
		status     string
		expiration sql.NullTime
		payment    sql.NullString
		reason     sql.NullString
		returnedAt sql.NullTime
	)
	if err := s.Scan(&t.ID, &t.ConcertID, &t.ConcertTitle, &buyer, &t.BuyerEmail, &t.SeatNumber,
		&t.PurchaseTimestamp, &status, &expiration, &payment, &reason, &returnedAt); err != nil {
		return model.Ticket{}, err
	}
	t.Status = model.TicketStatus(status)
	t.PurchaseTimestamp = t.PurchaseTimestamp.UTC()
	if buyer.Valid {
		id := buyer.UUID
		t.BuyerID = &id
	}
	if expiration.Valid {
		e := expiration.Time.UTC()
		t.ReservationExpiration = &e
	}
	if payment.Valid {
		p := payment.String
		t.PaymentMethod = &p
	}
	if reason.Valid {
		r := reason.String
		t.ReturnReason = &r
	}
	if returnedAt.Valid {
		rt := returnedAt.Time.UTC()
		t.ReturnTime = &rt
	}
	return t, nil
}

func scanTickets(rows *sql.Rows) ([]model.Ticket, error) {
	defer rows.Close()
	tickets := make([]model.Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}

func nullUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// LockConcert takes a row lock on the concert and returns the capacity
// of its hall.  Callers must hold a transaction (TxManager.WithTx); the
// lock is released on commit or rollback and serializes every
// capacity check for that concert.  It returns model.ErrConcertNotFound
// when the concert does not exist.
func (r *TicketRepo) LockConcert(ctx context.Context, concertID uint64) (int, error) {
	if txFromContext(ctx) == nil {
		return 0, errors.New("lock concert: no transaction in context")
	}
	const q = `SELECT h.capacity FROM concerts c JOIN halls h ON h.id = c.hall_id WHERE c.id = ? FOR UPDATE OF c`
	var capacity int
	if err := conn(ctx, r.db).QueryRowContext(ctx, q, concertID).Scan(&capacity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, model.ErrConcertNotFound
		}
		return 0, fmt.Errorf("lock concert: %w", err)
	}
	return capacity, nil
}

// Create inserts a ticket and assigns the generated ID.  The purchase
// timestamp is written as given and never touched again by any other
// method.
func (r *TicketRepo) Create(ctx context.Context, t *model.Ticket) error {
	const q = `INSERT INTO tickets (concert_id, buyer_id, seat_number, purchase_timestamp, status, reservation_expiration, payment_method)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := conn(ctx, r.db).ExecContext(ctx, q,
		t.ConcertID, nullUUID(t.BuyerID), t.SeatNumber, t.PurchaseTimestamp.UTC(), string(t.Status),
		nullTime(t.ReservationExpiration), nullString(t.PaymentMethod))
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	t.ID = uint64(id)
	return nil
}

// GetByID returns the ticket with its concert title and buyer email.
// It returns model.ErrTicketNotFound when there is no such ticket.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (model.Ticket, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, ticketView+` WHERE t.id = ?`, id)
	t, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Ticket{}, model.ErrTicketNotFound
		}
		return model.Ticket{}, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

// GetForUpdate reads and row-locks a ticket.  Joined fields are left
// empty.  It returns model.ErrTicketNotFound when there is no such
// ticket.
func (r *TicketRepo) GetForUpdate(ctx context.Context, id uint64) (model.Ticket, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, ticketColumns+` WHERE t.id = ? FOR UPDATE`, id)
	t, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Ticket{}, model.ErrTicketNotFound
		}
		return model.Ticket{}, fmt.Errorf("lock ticket: %w", err)
	}
	return t, nil
}

// ReservedByBuyerForUpdate locks up to limit RESERVED tickets that the
// buyer holds for the concert, oldest first.
func (r *TicketRepo) ReservedByBuyerForUpdate(ctx context.Context, concertID uint64, buyerID uuid.UUID, limit int) ([]model.Ticket, error) {
	const where = ` WHERE t.concert_id = ? AND t.buyer_id = ? AND t.status = 'RESERVED' ORDER BY t.id ASC LIMIT ? FOR UPDATE`
	rows, err := conn(ctx, r.db).QueryContext(ctx, ticketColumns+where, concertID, buyerID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("reserved by buyer: %w", err)
	}
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, fmt.Errorf("reserved by buyer: %w", err)
	}
	return tickets, nil
}

// MarkSold turns a RESERVED ticket into a SOLD one: the expiration is
// cleared and the payment method recorded.  The buyer is kept.
func (r *TicketRepo) MarkSold(ctx context.Context, id uint64, paymentMethod string) error {
	const q = `UPDATE tickets SET status = 'SOLD', reservation_expiration = NULL, payment_method = ? WHERE id = ?`
	if _, err := conn(ctx, r.db).ExecContext(ctx, q, paymentMethod, id); err != nil {
		return fmt.Errorf("mark sold: %w", err)
	}
	return nil
}

// MarkReturned releases a ticket back to AVAILABLE.  Only the buyer is
// cleared; seat, payment method, purchase timestamp and reservation
// expiration stay as history.
func (r *TicketRepo) MarkReturned(ctx context.Context, id uint64, reason string, at time.Time) error {
	const q = `UPDATE tickets SET status = 'AVAILABLE', buyer_id = NULL, return_reason = ?, return_time = ? WHERE id = ?`
	if _, err := conn(ctx, r.db).ExecContext(ctx, q, reason, at.UTC(), id); err != nil {
		return fmt.Errorf("mark returned: %w", err)
	}
	return nil
}

// CountOccupied returns the number of RESERVED and SOLD tickets of the
// concert.
func (r *TicketRepo) CountOccupied(ctx context.Context, concertID uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM tickets WHERE concert_id = ? AND status IN ('RESERVED', 'SOLD')`
	var n int
	if err := conn(ctx, r.db).QueryRowContext(ctx, q, concertID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count occupied: %w", err)
	}
	return n, nil
}

// CountByStatus returns the number of ticket rows per status, for one
// concert or, when concertID is nil, for all of them.  Statuses with no
// rows are reported as zero.
func (r *TicketRepo) CountByStatus(ctx context.Context, concertID *uint64) (map[model.TicketStatus]int, error) {
	q := `SELECT status, COUNT(*) FROM tickets`
	args := []any{}
	if concertID != nil {
		q += ` WHERE concert_id = ?`
		args = append(args, *concertID)
	}
	q += ` GROUP BY status`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()
	counts := map[model.TicketStatus]int{
		model.TicketAvailable: 0,
		model.TicketReserved:  0,
		model.TicketSold:      0,
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("count by status: %w", err)
		}
		counts[model.TicketStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	return counts, nil
}

// ExistsByConcertAndSeatWithStatus reports whether the concert already
// has a ticket for seat in one of the given statuses.
func (r *TicketRepo) ExistsByConcertAndSeatWithStatus(ctx context.Context, concertID uint64, seat string, statuses []model.TicketStatus) (bool, error) {
	if len(statuses) == 0 {
		return false, nil
	}
	placeholders := make([]string, 0, len(statuses))
	args := []any{concertID, seat}
	for _, s := range statuses {
		placeholders = append(placeholders, "?")
		args = append(args, string(s))
	}
	q := `SELECT EXISTS(SELECT 1 FROM tickets WHERE concert_id = ? AND seat_number = ? AND status IN (` +
		strings.Join(placeholders, ",") + `))`
	var exists bool
	if err := conn(ctx, r.db).QueryRowContext(ctx, q, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("seat exists: %w", err)
	}
	return exists, nil
}

// ReleaseExpired flips RESERVED tickets whose expiration is before
// cutoff back to AVAILABLE in one conditional statement, so a ticket
// converted to SOLD in the meantime is never touched.  A nil concertID
// sweeps every concert.  It returns the number of released tickets.
func (r *TicketRepo) ReleaseExpired(ctx context.Context, cutoff time.Time, concertID *uint64) (int64, error) {
	q := `UPDATE tickets SET status = 'AVAILABLE', buyer_id = NULL, reservation_expiration = NULL
          WHERE status = 'RESERVED' AND reservation_expiration < ?`
	args := []any{cutoff.UTC()}
	if concertID != nil {
		q += ` AND concert_id = ?`
		args = append(args, *concertID)
	}
	res, err := conn(ctx, r.db).ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("release expired: %w", err)
	}
	return res.RowsAffected()
}

// DeleteExpired removes lapsed reservations instead of releasing them.
// The same conditions as ReleaseExpired apply.
func (r *TicketRepo) DeleteExpired(ctx context.Context, cutoff time.Time, concertID *uint64) (int64, error) {
	q := `DELETE FROM tickets WHERE status = 'RESERVED' AND reservation_expiration < ?`
	args := []any{cutoff.UTC()}
	if concertID != nil {
		q += ` AND concert_id = ?`
		args = append(args, *concertID)
	}
	res, err := conn(ctx, r.db).ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}
	return res.RowsAffected()
}

// ListAll returns every ticket.
func (r *TicketRepo) ListAll(ctx context.Context, page model.PageRequest) (model.Page[model.Ticket], error) {
	return r.list(ctx, "", nil, page)
}

// ListByConcert returns the tickets of a concert in any status.
func (r *TicketRepo) ListByConcert(ctx context.Context, concertID uint64, page model.PageRequest) (model.Page[model.Ticket], error) {
	return r.list(ctx, "t.concert_id = ?", []any{concertID}, page)
}

// ListByBuyer returns the tickets currently owned by a buyer.
func (r *TicketRepo) ListByBuyer(ctx context.Context, buyerID uuid.UUID, page model.PageRequest) (model.Page[model.Ticket], error) {
	return r.list(ctx, "t.buyer_id = ?", []any{buyerID.String()}, page)
}

// ListByStatus returns the tickets in one status.
func (r *TicketRepo) ListByStatus(ctx context.Context, status model.TicketStatus, page model.PageRequest) (model.Page[model.Ticket], error) {
	return r.list(ctx, "t.status = ?", []any{string(status)}, page)
}

// ListByConcertName matches a case-insensitive substring of the
// concert title.
func (r *TicketRepo) ListByConcertName(ctx context.Context, name string, page model.PageRequest) (model.Page[model.Ticket], error) {
	return r.list(ctx, "LOWER(c.title) LIKE ?", []any{likePattern(name)}, page)
}

// ListByBuyerEmail matches a case-insensitive substring of the buyer
// email.
func (r *TicketRepo) ListByBuyerEmail(ctx context.Context, email string, page model.PageRequest) (model.Page[model.Ticket], error) {
	return r.list(ctx, "LOWER(u.email) LIKE ?", []any{likePattern(email)}, page)
}

// ListByPurchaseRange returns tickets whose purchase timestamp lies in
// [from, to], both ends included.
func (r *TicketRepo) ListByPurchaseRange(ctx context.Context, from, to time.Time, page model.PageRequest) (model.Page[model.Ticket], error) {
	return r.list(ctx, "t.purchase_timestamp BETWEEN ? AND ?", []any{from.UTC(), to.UTC()}, page)
}

// likeEscaper makes user input match literally under LIKE's default
// backslash escape.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(s))) + "%"
}

func orderBy(page model.PageRequest) string {
	col, ok := sortColumns[page.SortField]
	if !ok {
		return " ORDER BY t.id ASC"
	}
	dir := "ASC"
	if page.SortDesc {
		dir = "DESC"
	}
	// tie-break on id so pages are stable
	return " ORDER BY " + col + " " + dir + ", t.id ASC"
}

func (r *TicketRepo) list(ctx context.Context, cond string, args []any, page model.PageRequest) (model.Page[model.Ticket], error) {
	where := ""
	if cond != "" {
		where = " WHERE " + cond
	}
	q := conn(ctx, r.db)

	var total int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*)`+ticketFrom+where, args...).Scan(&total); err != nil {
		return model.Page[model.Ticket]{}, fmt.Errorf("count tickets: %w", err)
	}

	dataSQL := ticketView + where + orderBy(page)
	dataArgs := append([]any{}, args...)
	if page.Size > 0 {
		dataSQL += " LIMIT ? OFFSET ?"
		dataArgs = append(dataArgs, page.Size, page.Offset())
	}
	rows, err := q.QueryContext(ctx, dataSQL, dataArgs...)
	if err != nil {
		return model.Page[model.Ticket]{}, fmt.Errorf("list tickets: %w", err)
	}
	items, err := scanTickets(rows)
	if err != nil {
		return model.Page[model.Ticket]{}, fmt.Errorf("list tickets: %w", err)
	}
	return model.Page[model.Ticket]{Items: items, Total: total, Number: page.Number, Size: page.Size}, nil
}
