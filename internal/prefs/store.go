// Package prefs persists per-user view preferences and watchlists. The
// visualization core never touches storage directly; it receives a Store as
// an injected collaborator.
package prefs

import (
	"context"

	"github.com/mr1hm/go-outbreak-globe/internal/models"
)

// Preferences is everything the UI remembers per user.
type Preferences struct {
	Watchlist []string       `json:"watchlist"`
	ArcMode   models.ArcMode `json:"arc_mode"`
	VariantID string         `json:"variant_id,omitempty"`
	MinPax    int            `json:"min_pax"`
}

// Defaults returns the preferences for a user who has never saved any.
func Defaults() *Preferences {
	return &Preferences{
		ArcMode: models.ArcModeFlights,
		MinPax:  500,
	}
}

// Store loads and saves preferences. Load returning (nil, nil) means the
// user has no saved preferences yet.
type Store interface {
	Load(ctx context.Context, userID string) (*Preferences, error)
	Save(ctx context.Context, userID string, p *Preferences) error
}
