package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gardenplots/internal/config"
	"gardenplots/internal/domain"
	"gardenplots/internal/models"

	"github.com/google/uuid"
)

const bookingSelect = `SELECT b.id, b.user_id, b.garden_id, COALESCE(g.name, ''), b.start_date, b.end_date,
        b.duration_months, b.total_price_cents, b.status, b.payment_method, b.card_last4,
        b.created_at, b.updated_at
    FROM bookings b LEFT JOIN gardens g ON g.id = b.garden_id `

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(
		&b.ID, &b.UserID, &b.GardenID, &b.GardenName, &b.StartDate, &b.EndDate,
		&b.DurationMonths, &b.TotalPriceCents, &b.Status, &b.PaymentMethod, &b.CardLast4,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (db *DB) queryBookings(ctx context.Context, where string, args ...interface{}) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, bookingSelect+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	bookings := []*models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

// forUpdate locks selected rows on MySQL. SQLite transactions already hold
// the write lock because they start IMMEDIATE on a single connection.
func (db *DB) forUpdate() string {
	if db.driver == config.DriverMySQL {
		return " FOR UPDATE"
	}
	return ""
}

// ReserveBooking takes one plot of the garden and records the booking in a
// single transaction. The decrement is conditional on available_plots > 0,
// so of two callers racing for the last plot exactly one succeeds and the
// other gets PolicyRejected. Outbox events are written in the same
// transaction.
func (db *DB) ReserveBooking(ctx context.Context, booking *models.Booking, outbox ...models.OutboxEvent) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.Status == "" {
		booking.Status = models.StatusConfirmed
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE user_id = ? AND garden_id = ? AND status <> ?`,
		booking.UserID, booking.GardenID, models.StatusCancelled,
	).Scan(&existing)
	if err != nil {
		return fmt.Errorf("failed to check existing bookings: %w", err)
	}
	if existing > 0 {
		return domain.New(domain.KindDuplicateBooking, "an active booking for this garden already exists")
	}

	now := utcNow()
	res, err := tx.ExecContext(ctx,
		`UPDATE gardens SET available_plots = available_plots - 1, updated_at = ?
        WHERE id = ? AND available_plots > 0`,
		now, booking.GardenID,
	)
	if err != nil {
		return fmt.Errorf("failed to take plot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM gardens WHERE id = ?`, booking.GardenID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Newf(domain.KindNotFound, "garden %s not found", booking.GardenID)
		}
		if err != nil {
			return fmt.Errorf("failed to check garden: %w", err)
		}
		return domain.New(domain.KindPolicyRejected, "no plots available")
	}

	booking.CreatedAt = now
	booking.UpdatedAt = now
	_, err = tx.ExecContext(ctx, `INSERT INTO bookings (
            id, user_id, garden_id, start_date, end_date, duration_months, total_price_cents,
            status, payment_method, card_last4, active_slot, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.ID, booking.UserID, booking.GardenID, booking.StartDate.UTC(), booking.EndDate.UTC(),
		booking.DurationMonths, booking.TotalPriceCents, booking.Status, booking.PaymentMethod,
		booking.CardLast4, models.ActiveSlot(booking.UserID, booking.GardenID), booking.CreatedAt, booking.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.New(domain.KindDuplicateBooking, "an active booking for this garden already exists")
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	if err := recordOutbox(ctx, tx, outbox); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CancelBooking marks the booking cancelled and returns its plot, both or
// neither. The plot counter never goes above total_plots.
func (db *DB) CancelBooking(ctx context.Context, id string, outbox ...models.OutboxEvent) (*models.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	booking, err := scanBooking(tx.QueryRowContext(ctx, bookingSelect+`WHERE b.id = ?`+db.forUpdate(), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Newf(domain.KindNotFound, "booking %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if booking.Status == models.StatusCancelled {
		return nil, domain.New(domain.KindAlreadyCancelled, "booking is already cancelled")
	}

	now := utcNow()
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, active_slot = NULL, updated_at = ? WHERE id = ? AND status <> ?`,
		models.StatusCancelled, now, id, models.StatusCancelled,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return nil, domain.New(domain.KindAlreadyCancelled, "booking is already cancelled")
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE gardens SET available_plots = available_plots + 1, updated_at = ?
        WHERE id = ? AND available_plots < total_plots`,
		now, booking.GardenID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to return plot: %w", err)
	}
	if n, err = res.RowsAffected(); err == nil && n == 0 {
		db.logger.Warn().
			Str("booking_id", id).
			Str("garden_id", booking.GardenID).
			Msg("Plot not returned: garden missing or already at full capacity")
	}

	booking.Status = models.StatusCancelled
	booking.UpdatedAt = now
	if err := recordOutbox(ctx, tx, outbox); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return booking, nil
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	b, err := scanBooking(db.QueryRowContext(ctx, bookingSelect+`WHERE b.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Newf(domain.KindNotFound, "booking %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

func (db *DB) HasActiveBooking(ctx context.Context, userID, gardenID string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE user_id = ? AND garden_id = ? AND status <> ?`,
		userID, gardenID, models.StatusCancelled,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check active booking: %w", err)
	}
	return n > 0, nil
}

func (db *DB) ListBookingsByUser(ctx context.Context, userID string) ([]*models.Booking, error) {
	return db.queryBookings(ctx, `WHERE b.user_id = ? ORDER BY b.created_at DESC`, userID)
}

func (db *DB) ListBookingsByGarden(ctx context.Context, gardenID string) ([]*models.Booking, error) {
	return db.queryBookings(ctx, `WHERE b.garden_id = ? ORDER BY b.created_at DESC`, gardenID)
}

// ListBookingsByDateRange returns bookings whose rental term overlaps [start, end].
func (db *DB) ListBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	return db.queryBookings(ctx,
		`WHERE b.start_date <= ? AND b.end_date >= ? ORDER BY b.start_date`,
		end.UTC(), start.UTC(),
	)
}
