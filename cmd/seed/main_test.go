package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"gardenplots/internal/database"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gardensYAML = `
gardens:
  - id: "7b0e4c1e-0000-4000-8000-000000000001"
    name: Oak Row
    address: Lenina 1
    total_plots: 4
    base_price_per_month_cents: 2500
    amenities: [water, shed]
  - name: Birch Lane
    total_plots: 2
  - name: ""
    total_plots: 9
`

func TestSeed_CreatesThenUpdates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gardens.yaml")
	require.NoError(t, os.WriteFile(path, []byte(gardensYAML), 0o600))

	logger := zerolog.New(io.Discard)
	db, err := database.NewSQLite(":memory:", &logger)
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	gardens, err := readGardens(path)
	require.NoError(t, err)
	created, updated, err := seed(ctx, db, gardens, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Equal(t, 0, updated)

	oak, err := db.GetGarden(ctx, "7b0e4c1e-0000-4000-8000-000000000001")
	require.NoError(t, err)
	assert.Equal(t, 4, oak.AvailablePlots)
	assert.Equal(t, "owner-1", oak.OwnerID)
	assert.Equal(t, []string{"water", "shed"}, oak.Amenities)

	gardens, err = readGardens(path)
	require.NoError(t, err)
	gardens[0].TotalPlots = 6
	created, updated, err = seed(ctx, db, gardens[:1], "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Equal(t, 1, updated)

	oak, err = db.GetGarden(ctx, oak.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, oak.AvailablePlots)
}

func TestReadGardens_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gardens.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gardens: []\n"), 0o600))
	_, err := readGardens(path)
	assert.Error(t, err)
}
