package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/concert-ticketing/internal/model"
)

func TestPurchaseConvertsOwnReservations(t *testing.T) {
	f := newFixture(Config{})
	f.store.addConcert(1, "Opening Night", 10)
	buyer := f.store.addUser("fan@example.com")

	held, err := f.svc.Book(context.Background(), BookRequest{ConcertID: 1, Quantity: 2, BuyerID: &buyer, Seat: "C1"})
	require.NoError(t, err)
	before := f.occupied(1)

	sold, err := f.svc.Purchase(context.Background(), PurchaseRequest{ConcertID: 1, BuyerID: &buyer, PaymentMethod: "card", Quantity: 2})
	require.NoError(t, err)
	require.Len(t, sold, 2)
	for i, tk := range sold {
		assert.Equal(t, held[i].ID, tk.ID)
		assert.Equal(t, model.TicketSold, tk.Status)
		assert.Nil(t, tk.ReservationExpiration)
		require.NotNil(t, tk.PaymentMethod)
		assert.Equal(t, "card", *tk.PaymentMethod)
		assert.True(t, tk.OwnedBy(buyer))
		assert.Equal(t, "C1", tk.SeatNumber)
	}
	assert.Equal(t, before, f.occupied(1))
	assert.Equal(t, 2, f.rows(), "no new tickets")
}

func TestPurchaseReservationsFirstThenNewTickets(t *testing.T) {
	f := newFixture(Config{})
	f.store.addConcert(1, "Opening Night", 5)
	buyer := f.store.addUser("fan@example.com")

	held, err := f.svc.Book(context.Background(), BookRequest{ConcertID: 1, BuyerID: &buyer})
	require.NoError(t, err)

	sold, err := f.svc.Purchase(context.Background(), PurchaseRequest{ConcertID: 1, BuyerID: &buyer, Quantity: 3})
	require.NoError(t, err)
	require.Len(t, sold, 3)
	assert.Equal(t, held[0].ID, sold[0].ID)
	assert.Greater(t, sold[1].ID, held[0].ID)
	for _, tk := range sold {
		assert.Equal(t, model.TicketSold, tk.Status)
		assert.Equal(t, DefaultPaymentMethod, *tk.PaymentMethod)
	}
	assert.Equal(t, 3, f.occupied(1))
}

func TestPurchaseRejectedLeavesReservationsUntouched(t *testing.T) {
	f := newFixture(Config{})
	f.store.addConcert(1, "Opening Night", 3)
	buyer := f.store.addUser("fan@example.com")

	held, err := f.svc.Book(context.Background(), BookRequest{ConcertID: 1, Quantity: 2, BuyerID: &buyer})
	require.NoError(t, err)
	_, err = f.svc.Book(context.Background(), BookRequest{ConcertID: 1})
	require.NoError(t, err)

	_, err = f.svc.Purchase(context.Background(), PurchaseRequest{ConcertID: 1, BuyerID: &buyer, Quantity: 3})
	var capErr *model.CapacityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, 1, capErr.Requested)
	assert.Equal(t, 0, capErr.Available)

	for _, h := range held {
		tk, err := f.svc.Get(context.Background(), h.ID)
		require.NoError(t, err)
		assert.Equal(t, model.TicketReserved, tk.Status)
		assert.Nil(t, tk.PaymentMethod)
	}
	assert.Equal(t, 3, f.rows())
}

func TestPurchaseRollsBackPartialConversion(t *testing.T) {
	f := newFixture(Config{})
	f.store.addConcert(1, "Opening Night", 5)
	buyer := f.store.addUser("fan@example.com")
	_, err := f.svc.Book(context.Background(), BookRequest{ConcertID: 1, Quantity: 2, BuyerID: &buyer})
	require.NoError(t, err)

	f.store.failOn = "create"
	_, err = f.svc.Purchase(context.Background(), PurchaseRequest{ConcertID: 1, BuyerID: &buyer, Quantity: 3})
	require.Error(t, err)

	page, err := f.svc.ListTickets(context.Background(), TicketFilter{Status: model.TicketSold}, model.NewPageRequest(0, 20, ""))
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestPurchaseIgnoresLapsedReservations(t *testing.T) {
	f := newFixture(Config{})
	f.store.addConcert(1, "Opening Night", 5)
	buyer := f.store.addUser("fan@example.com")
	held, err := f.svc.Book(context.Background(), BookRequest{ConcertID: 1, BuyerID: &buyer})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	sold, err := f.svc.Purchase(context.Background(), PurchaseRequest{ConcertID: 1, BuyerID: &buyer})
	require.NoError(t, err)
	require.Len(t, sold, 1)
	assert.NotEqual(t, held[0].ID, sold[0].ID)

	released, err := f.svc.Get(context.Background(), held[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketAvailable, released.Status)
	assert.Nil(t, released.BuyerID)
}

func TestPurchaseWithoutBuyer(t *testing.T) {
	f := newFixture(Config{})
	f.store.addConcert(1, "Opening Night", 5)

	sold, err := f.svc.Purchase(context.Background(), PurchaseRequest{ConcertID: 1, Quantity: 2, PaymentMethod: " card "})
	require.NoError(t, err)
	require.Len(t, sold, 2)
	assert.Nil(t, sold[0].BuyerID)
	assert.Equal(t, "card", *sold[0].PaymentMethod)
}

func TestSell(t *testing.T) {
	f := newFixture(Config{})
	f.store.addConcert(1, "Opening Night", 5)
	buyer := f.store.addUser("fan@example.com")

	_, err := f.svc.Sell(context.Background(), SellRequest{ConcertID: 1, BuyerEmail: "  "})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.svc.Sell(context.Background(), SellRequest{ConcertID: 1, BuyerEmail: "nobody@example.com"})
	assert.ErrorIs(t, err, ErrNotFound)

	sold, err := f.svc.Sell(context.Background(), SellRequest{ConcertID: 1, BuyerEmail: "FAN@example.com", Quantity: 2})
	require.NoError(t, err)
	require.Len(t, sold, 2)
	assert.True(t, sold[0].OwnedBy(buyer))

	mine, err := f.svc.TicketsByBuyer(context.Background(), buyer, model.NewPageRequest(0, 20, ""))
	require.NoError(t, err)
	assert.Equal(t, int64(2), mine.Total)
	assert.Equal(t, "fan@example.com", mine.Items[0].BuyerEmail)
}

func TestPurchaseResultMatchesStoredTickets(t *testing.T) {
	f := newFixture(Config{})
	f.store.addConcert(1, "Opening Night", 5)
	buyer := f.store.addUser("fan@example.com")

	booked, err := f.svc.Book(context.Background(), BookRequest{ConcertID: 1, BuyerID: &buyer})
	require.NoError(t, err)
	assert.Equal(t, "fan@example.com", booked[0].BuyerEmail)

	sold, err := f.svc.Purchase(context.Background(), PurchaseRequest{ConcertID: 1, BuyerID: &buyer, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, sold, 2)
	for _, tk := range sold {
		stored, err := f.svc.Get(context.Background(), tk.ID)
		require.NoError(t, err)
		assert.Equal(t, stored, tk)
		assert.Equal(t, "fan@example.com", tk.BuyerEmail)
	}
}
