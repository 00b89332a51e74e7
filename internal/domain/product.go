package domain

import "time"

// Product is a merchandise template from the catalog.
type Product struct {
	ID           string
	Name         string
	BaseImageURL string
	PrintZones   []string
	MaxColors    int
	Constraints  string
	Archived     bool
	SortOrder    int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
