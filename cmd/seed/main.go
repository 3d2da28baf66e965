// Command seed loads gardens from a YAML file into the store.
// Gardens with a known id are updated, the rest are created.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gardenplots/internal/config"
	"gardenplots/internal/database"
	"gardenplots/internal/domain"
	"gardenplots/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type gardensFile struct {
	Gardens []models.Garden `yaml:"gardens"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		configPath  = flag.String("config", "configs/config.yaml", "path to config.yaml")
		gardensPath = flag.String("gardens", "configs/gardens.yaml", "path to gardens.yaml")
		ownerID     = flag.String("owner", "", "owner id for gardens without owner_id")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gardens, err := readGardens(*gardensPath)
	if err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created, updated, err := seed(ctx, db, gardens, *ownerID)
	if err != nil {
		return err
	}
	logger.Info().Int("created", created).Int("updated", updated).Msg("gardens seeded")
	return nil
}

func readGardens(path string) ([]models.Garden, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gardens: %w", err)
	}
	var f gardensFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse gardens: %w", err)
	}
	if len(f.Gardens) == 0 {
		return nil, errors.New("no gardens in yaml")
	}
	return f.Gardens, nil
}

func seed(ctx context.Context, store domain.GardenStore, gardens []models.Garden, ownerID string) (created, updated int, err error) {
	for i := range gardens {
		g := &gardens[i]
		if strings.TrimSpace(g.Name) == "" {
			continue
		}
		if g.OwnerID == "" {
			g.OwnerID = ownerID
		}

		if g.ID != "" {
			_, err = store.GetGarden(ctx, g.ID)
			switch {
			case err == nil:
				if err = store.UpdateGarden(ctx, g); err != nil {
					return created, updated, fmt.Errorf("update %s: %w", g.Name, err)
				}
				updated++
				continue
			case domain.KindOf(err) != domain.KindNotFound:
				return created, updated, fmt.Errorf("get %s: %w", g.Name, err)
			}
		}

		if err = store.CreateGarden(ctx, g); err != nil {
			return created, updated, fmt.Errorf("create %s: %w", g.Name, err)
		}
		created++
	}
	return created, updated, nil
}
