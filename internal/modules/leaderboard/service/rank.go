package service

import (
	"sort"

	"anoa.com/runclub/internal/modules/leaderboard/dto"
)

// Rank orders entries by distance then runs, both descending, and assigns
// 1-based positions. Ties keep their input order. The input is not modified.
func Rank(entries []dto.LeaderboardEntry) []dto.LeaderboardEntry {
	ranked := make([]dto.LeaderboardEntry, len(entries))
	copy(ranked, entries)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].TotalDistance != ranked[j].TotalDistance {
			return ranked[i].TotalDistance > ranked[j].TotalDistance
		}
		return ranked[i].TotalRuns > ranked[j].TotalRuns
	})

	for i := range ranked {
		ranked[i].Position = i + 1
	}
	return ranked
}
