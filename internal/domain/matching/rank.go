package matching

import (
	"sort"

	"github.com/okian/xpand/internal/domain/model"
)

// Rank orders matches best first: score desc, then most recently created,
// then highest id so the order is total.
func Rank(ms []model.Match) {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

// TopMatches ranks a copy of ms and returns at most n entries.
// n <= 0 returns every match.
func TopMatches(ms []model.Match, n int) []model.TopMatch {
	ranked := append([]model.Match(nil), ms...)
	Rank(ranked)
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}

	out := make([]model.TopMatch, 0, len(ranked))
	for _, m := range ranked {
		out = append(out, model.TopMatch{
			MatchID:   m.ID,
			VendorID:  m.VendorID,
			Score:     m.Score,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		})
	}
	return out
}
