package inventory

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/concert-ticketing/internal/monitoring"
	"github.com/iliyamo/concert-ticketing/internal/queue"
)

// ExpireReservations applies the expiry policy to every RESERVED
// ticket whose expiration is before cutoff, across all concerts, in a
// single conditional statement.  A zero cutoff means now.  Tickets
// already converted to SOLD are never matched, so running it twice in a
// row affects nothing the second time.
func (s *Service) ExpireReservations(ctx context.Context, cutoff time.Time) (int64, error) {
	if cutoff.IsZero() {
		cutoff = s.now()
	}
	start := time.Now()

	var (
		n   int64
		err error
	)
	if s.cfg.ExpiryPolicy == PolicyDelete {
		n, err = s.tickets.DeleteExpired(ctx, cutoff, nil)
	} else {
		n, err = s.tickets.ReleaseExpired(ctx, cutoff, nil)
	}
	if err != nil {
		return 0, err
	}
	monitoring.TrackSweep(n, time.Since(start))
	if n > 0 {
		log.Printf("inventory: expired n=%d policy=%s cutoff=%s", n, s.cfg.ExpiryPolicy, cutoff.Format(time.RFC3339))
		s.publish(ctx, queue.TicketEvent{
			Type:   queue.EventReservationsExpired,
			Count:  n,
			Reason: s.cfg.ExpiryPolicy,
		})
	}
	return n, nil
}

// ExpiryPolicy returns the configured policy, PolicyRelease or PolicyDelete.
func (s *Service) ExpiryPolicy() string { return s.cfg.ExpiryPolicy }
