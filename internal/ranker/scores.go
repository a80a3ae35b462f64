package ranker

import (
	"math"

	"github.com/deidaraiorek/searchcore/internal/storage"
)

// epsilon stands in for a zero denominator during normalization.
const epsilon = 0.00001

// normalize maps raw signal values into [0, 1]. Larger values win unless
// smallIsBetter is set, in which case the smallest value scores 1.
func normalize(raw map[int64]float64, smallIsBetter bool) map[int64]float64 {
	out := make(map[int64]float64, len(raw))
	if len(raw) == 0 {
		return out
	}

	if smallIsBetter {
		lowest := math.Inf(1)
		for _, v := range raw {
			lowest = min(lowest, v)
		}
		for id, v := range raw {
			out[id] = lowest / max(epsilon, v)
		}
		return out
	}

	var highest float64
	for _, v := range raw {
		highest = max(highest, v)
	}
	if highest == 0 {
		highest = epsilon
	}
	for id, v := range raw {
		out[id] = v / highest
	}
	return out
}

// frequency counts the matching rows of every document.
func frequency(rows []storage.MatchRow) map[int64]float64 {
	counts := make(map[int64]float64)
	for _, row := range rows {
		counts[row.URLID]++
	}
	return counts
}

// location keeps, per document, the smallest sum of term positions.
func location(rows []storage.MatchRow) map[int64]float64 {
	best := make(map[int64]float64)
	for _, row := range rows {
		var sum float64
		for _, loc := range row.Locations {
			sum += float64(loc)
		}
		if cur, ok := best[row.URLID]; !ok || sum < cur {
			best[row.URLID] = sum
		}
	}
	return best
}

// distance keeps, per document, the smallest total gap between consecutive
// query terms. A single term has no gaps: distance returns nil and the caller
// gives every document the full score of 1.
func distance(rows []storage.MatchRow) map[int64]float64 {
	if len(rows) == 0 || len(rows[0].Locations) < 2 {
		return nil
	}
	best := make(map[int64]float64)
	for _, row := range rows {
		var gap float64
		for i := 1; i < len(row.Locations); i++ {
			gap += math.Abs(float64(row.Locations[i] - row.Locations[i-1]))
		}
		if cur, ok := best[row.URLID]; !ok || gap < cur {
			best[row.URLID] = gap
		}
	}
	return best
}

func uniform(ids []int64, v float64) map[int64]float64 {
	out := make(map[int64]float64, len(ids))
	for _, id := range ids {
		out[id] = v
	}
	return out
}
