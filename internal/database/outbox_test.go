package database

import (
	"context"
	"testing"

	"gardenplots/internal/domain"
	"gardenplots/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outboxEvent(eventType string, build func() (string, interface{})) models.OutboxEvent {
	return models.OutboxEvent{EventType: eventType, Build: build}
}

func outboxCount(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM outbox`).Scan(&n))
	return n
}

func TestOutboxCommittedWithChange(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	g := &models.Garden{OwnerID: "owner-1", Name: "Riverside", TotalPlots: 2}
	require.NoError(t, db.CreateGarden(ctx, g, outboxEvent("garden_created", func() (string, interface{}) {
		// id is assigned by the store before the event is built
		return g.ID, map[string]interface{}{"available": g.AvailablePlots}
	})))

	b := newBooking("u1", g.ID, 1)
	require.NoError(t, db.ReserveBooking(ctx, b, outboxEvent("booking_created", func() (string, interface{}) {
		return b.ID, map[string]string{"status": b.Status}
	})))

	upd := *g
	upd.TotalPlots = 4
	require.NoError(t, db.UpdateGarden(ctx, &upd, outboxEvent("garden_updated", func() (string, interface{}) {
		return upd.ID, map[string]interface{}{"available": upd.AvailablePlots}
	})))

	tasks, err := db.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, g.ID, tasks[0].AggregateID)
	assert.JSONEq(t, `{"available":2}`, tasks[0].Payload)
	assert.Equal(t, b.ID, tasks[1].AggregateID)
	// availability recomputed inside the transaction: 4 plots, 1 active
	assert.JSONEq(t, `{"available":3}`, tasks[2].Payload)
}

func TestOutboxFailureRollsBackChange(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	g := seedGarden(t, db, "Riverside", 2, 2500)

	unencodable := func() (string, interface{}) { return "x", make(chan int) }

	t.Run("Reserve", func(t *testing.T) {
		err := db.ReserveBooking(ctx, newBooking("u1", g.ID, 1), outboxEvent("booking_created", unencodable))
		require.Error(t, err)
		assert.Equal(t, 2, availablePlots(t, db, g.ID))
		mine, err := db.ListBookingsByUser(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, mine)
	})

	t.Run("Cancel", func(t *testing.T) {
		b := newBooking("u2", g.ID, 1)
		require.NoError(t, db.ReserveBooking(ctx, b))

		_, err := db.CancelBooking(ctx, b.ID, outboxEvent("booking_cancelled", unencodable))
		require.Error(t, err)
		got, err := db.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusConfirmed, got.Status)
		assert.Equal(t, 1, availablePlots(t, db, g.ID))
	})

	t.Run("Delete", func(t *testing.T) {
		empty := seedGarden(t, db, "Empty", 1, 1000)
		err := db.DeleteGarden(ctx, empty.ID, outboxEvent("garden_deleted", unencodable))
		require.Error(t, err)
		_, err = db.GetGarden(ctx, empty.ID)
		assert.NoError(t, err)
	})

	t.Run("MissingAggregateID", func(t *testing.T) {
		err := db.ReserveBooking(ctx, newBooking("u3", g.ID, 1), outboxEvent("booking_created", func() (string, interface{}) {
			return "", nil
		}))
		require.Error(t, err)
		assert.Empty(t, domain.KindOf(err))
	})

	assert.Zero(t, outboxCount(t, db))
}
