package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/concert-ticketing/internal/model"
)

// ConcertRepo looks up concerts together with the capacity of their
// hall.  The ticket service never writes concerts.
type ConcertRepo struct{ DB *sql.DB }

func NewConcertRepo(db *sql.DB) *ConcertRepo { return &ConcertRepo{DB: db} }

// GetByID returns the concert or model.ErrConcertNotFound.
func (r *ConcertRepo) GetByID(ctx context.Context, id uint64) (model.Concert, error) {
	const q = `SELECT c.id, c.title, c.hall_id, h.capacity
               FROM concerts c JOIN halls h ON h.id = c.hall_id
               WHERE c.id = ?`
	var c model.Concert
	if err := conn(ctx, r.DB).QueryRowContext(ctx, q, id).Scan(&c.ID, &c.Title, &c.HallID, &c.HallCapacity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Concert{}, model.ErrConcertNotFound
		}
		return model.Concert{}, fmt.Errorf("get concert: %w", err)
	}
	return c, nil
}
