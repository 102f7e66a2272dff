package model

// Concert is the read-only view of a scheduled concert that the
// ticket inventory needs: its title for display and the capacity of
// the hall it is held in.
type Concert struct {
	ID           uint64 // concerts.id
	Title        string // concerts.title
	HallID       uint64 // concerts.hall_id
	HallCapacity int    // halls.capacity
}

// Occupancy describes how much of a concert's hall is taken.  Occupied
// counts RESERVED and SOLD tickets; Available never goes below zero.
type Occupancy struct {
	ConcertID    uint64 `json:"concert_id"`
	HallCapacity int    `json:"hall_capacity"`
	Occupied     int    `json:"occupied"`
	Available    int    `json:"available"`
}

// NewOccupancy derives the available count from capacity and occupied.
func NewOccupancy(concertID uint64, capacity, occupied int) Occupancy {
	available := capacity - occupied
	if available < 0 {
		available = 0
	}
	return Occupancy{ConcertID: concertID, HallCapacity: capacity, Occupied: occupied, Available: available}
}

// ConcertStats is the per-concert stats view: occupancy plus the raw
// number of ticket rows in each status.
type ConcertStats struct {
	Occupancy
	Sold          int `json:"sold"`
	Reserved      int `json:"reserved"`
	AvailableRows int `json:"available_rows"`
}

// TicketStatistics aggregates ticket rows across all concerts.
type TicketStatistics struct {
	TotalTickets int                  `json:"total_tickets"`
	ByStatus     map[TicketStatus]int `json:"tickets_by_status"`
}
