package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gardenplots/internal/domain"
	"gardenplots/internal/models"

	"github.com/google/uuid"
)

const gardenColumns = `id, owner_id, name, description, address, latitude, longitude,
        total_plots, available_plots, base_price_cents, size_sqm, amenities, images,
        created_at, updated_at`

func scanGarden(row rowScanner) (*models.Garden, error) {
	var g models.Garden
	var amenities, images string
	err := row.Scan(
		&g.ID, &g.OwnerID, &g.Name, &g.Description, &g.Address, &g.Latitude, &g.Longitude,
		&g.TotalPlots, &g.AvailablePlots, &g.BasePriceCents, &g.SizeSqm, &amenities, &images,
		&g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := decodeList(amenities, &g.Amenities); err != nil {
		return nil, fmt.Errorf("failed to decode amenities of garden %s: %w", g.ID, err)
	}
	if err := decodeList(images, &g.Images); err != nil {
		return nil, fmt.Errorf("failed to decode images of garden %s: %w", g.ID, err)
	}
	return &g, nil
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeList(raw string, dst *[]string) error {
	if raw == "" {
		*dst = []string{}
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}

func (db *DB) queryGardens(ctx context.Context, where string, args ...interface{}) ([]*models.Garden, error) {
	query := `SELECT ` + gardenColumns + ` FROM gardens ` + where
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query gardens: %w", err)
	}
	defer rows.Close()

	gardens := []*models.Garden{}
	for rows.Next() {
		g, err := scanGarden(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan garden: %w", err)
		}
		gardens = append(gardens, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate gardens: %w", err)
	}
	return gardens, nil
}

// CreateGarden inserts a new garden with every plot available.
func (db *DB) CreateGarden(ctx context.Context, g *models.Garden, outbox ...models.OutboxEvent) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	amenities, err := encodeList(g.Amenities)
	if err != nil {
		return fmt.Errorf("failed to encode amenities: %w", err)
	}
	images, err := encodeList(g.Images)
	if err != nil {
		return fmt.Errorf("failed to encode images: %w", err)
	}

	now := utcNow()
	g.AvailablePlots = g.TotalPlots
	g.CreatedAt = now
	g.UpdatedAt = now

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO gardens (` + gardenColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query,
		g.ID, g.OwnerID, g.Name, g.Description, g.Address, g.Latitude, g.Longitude,
		g.TotalPlots, g.AvailablePlots, g.BasePriceCents, g.SizeSqm, amenities, images,
		g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create garden: %w", err)
	}
	if err := recordOutbox(ctx, tx, outbox); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (db *DB) GetGarden(ctx context.Context, id string) (*models.Garden, error) {
	row := db.QueryRowContext(ctx, `SELECT `+gardenColumns+` FROM gardens WHERE id = ?`, id)
	g, err := scanGarden(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Newf(domain.KindNotFound, "garden %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get garden: %w", err)
	}
	return g, nil
}

func (db *DB) ListGardens(ctx context.Context) ([]*models.Garden, error) {
	return db.queryGardens(ctx, `ORDER BY created_at DESC`)
}

func (db *DB) ListAvailableGardens(ctx context.Context) ([]*models.Garden, error) {
	return db.queryGardens(ctx, `WHERE available_plots > 0 ORDER BY created_at DESC`)
}

// SearchGardens matches a case-insensitive substring of the garden name.
func (db *DB) SearchGardens(ctx context.Context, query string) ([]*models.Garden, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	return db.queryGardens(ctx, `WHERE LOWER(name) LIKE ? ESCAPE '!' ORDER BY name`, pattern)
}

func (db *DB) ListGardensByOwner(ctx context.Context, ownerID string) ([]*models.Garden, error) {
	return db.queryGardens(ctx, `WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
}

// UpdateGarden overwrites editable fields. Availability is recomputed from
// the active bookings so that a changed plot count never breaks the
// 0 <= available <= total invariant.
func (db *DB) UpdateGarden(ctx context.Context, g *models.Garden, outbox ...models.OutboxEvent) error {
	amenities, err := encodeList(g.Amenities)
	if err != nil {
		return fmt.Errorf("failed to encode amenities: %w", err)
	}
	images, err := encodeList(g.Images)
	if err != nil {
		return fmt.Errorf("failed to encode images: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := scanGarden(tx.QueryRowContext(ctx,
		`SELECT `+gardenColumns+` FROM gardens WHERE id = ?`+db.forUpdate(), g.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Newf(domain.KindNotFound, "garden %s not found", g.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to load garden: %w", err)
	}

	active, err := countActiveBookings(ctx, tx, g.ID)
	if err != nil {
		return err
	}
	if g.TotalPlots < active {
		return domain.Newf(domain.KindPolicyRejected,
			"total plots %d is below the %d active bookings", g.TotalPlots, active)
	}

	g.OwnerID = current.OwnerID
	g.CreatedAt = current.CreatedAt
	g.AvailablePlots = g.TotalPlots - active
	g.UpdatedAt = utcNow()

	_, err = tx.ExecContext(ctx, `UPDATE gardens SET name = ?, description = ?, address = ?, latitude = ?,
            longitude = ?, total_plots = ?, available_plots = ?, base_price_cents = ?, size_sqm = ?,
            amenities = ?, images = ?, updated_at = ?
        WHERE id = ?`,
		g.Name, g.Description, g.Address, g.Latitude, g.Longitude, g.TotalPlots, g.AvailablePlots,
		g.BasePriceCents, g.SizeSqm, amenities, images, g.UpdatedAt, g.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update garden: %w", err)
	}
	if err := recordOutbox(ctx, tx, outbox); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteGarden removes a garden that no active booking refers to.
func (db *DB) DeleteGarden(ctx context.Context, id string, outbox ...models.OutboxEvent) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	active, err := countActiveBookings(ctx, tx, id)
	if err != nil {
		return err
	}
	if active > 0 {
		return domain.Newf(domain.KindPolicyRejected, "garden has %d active bookings", active)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM gardens WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete garden: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return domain.Newf(domain.KindNotFound, "garden %s not found", id)
	}
	if err := recordOutbox(ctx, tx, outbox); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func countActiveBookings(ctx context.Context, tx *sql.Tx, gardenID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE garden_id = ? AND status <> ?`,
		gardenID, models.StatusCancelled,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active bookings: %w", err)
	}
	return n, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)
	return r.Replace(s)
}
