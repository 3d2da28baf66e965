package models

import "time"

// Garden is a rentable site split into identical plots.
type Garden struct {
	ID             string    `json:"id" yaml:"id"`
	OwnerID        string    `json:"owner_id" yaml:"owner_id"`
	Name           string    `json:"name" yaml:"name"`
	Description    string    `json:"description" yaml:"description"`
	Address        string    `json:"address" yaml:"address"`
	Latitude       float64   `json:"latitude" yaml:"latitude"`
	Longitude      float64   `json:"longitude" yaml:"longitude"`
	TotalPlots     int       `json:"total_plots" yaml:"total_plots"`
	AvailablePlots int       `json:"available_plots" yaml:"available_plots"`
	BasePriceCents int64     `json:"base_price_per_month_cents" yaml:"base_price_per_month_cents"`
	SizeSqm        float64   `json:"size_sqm" yaml:"size_sqm"`
	Amenities      []string  `json:"amenities" yaml:"amenities"`
	Images         []string  `json:"images" yaml:"images"`
	CreatedAt      time.Time `json:"created_at" yaml:"-"`
	UpdatedAt      time.Time `json:"updated_at" yaml:"-"`
}

// HasAvailability reports whether at least one plot can be reserved.
func (g *Garden) HasAvailability() bool {
	return g.AvailablePlots > 0
}

// GardenInput carries admin-editable garden fields.
type GardenInput struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Address        string   `json:"address"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	TotalPlots     int      `json:"total_plots"`
	BasePriceCents int64    `json:"base_price_per_month_cents"`
	SizeSqm        float64  `json:"size_sqm"`
	Amenities      []string `json:"amenities"`
	Images         []string `json:"images"`
}
