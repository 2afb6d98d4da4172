package dto

import (
	"time"

	"github.com/google/uuid"
)

// LeaderboardEntry is one ranked member. Position is 1-based.
type LeaderboardEntry struct {
	UserID        uuid.UUID `json:"user_id"`
	DisplayName   string    `json:"display_name"`
	PhotoURL      *string   `json:"photo_url,omitempty"`
	Position      int       `json:"position"`
	TotalRuns     int       `json:"total_runs"`
	TotalDistance int       `json:"total_distance"`
}

type Snapshot struct {
	Entries     []LeaderboardEntry `json:"data"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// Top returns a copy of the snapshot holding at most limit entries.
func (s *Snapshot) Top(limit int) *Snapshot {
	if limit <= 0 || limit >= len(s.Entries) {
		return s
	}
	return &Snapshot{Entries: s.Entries[:limit], GeneratedAt: s.GeneratedAt}
}
