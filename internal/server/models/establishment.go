package models

import "time"

// Establishment is a venue registered by a partner.
type Establishment struct {
	ID        string
	OwnerID   string
	Name      string
	Address   string
	Cuisine   string
	CreatedAt time.Time
}
