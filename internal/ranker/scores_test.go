package ranker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deidaraiorek/searchcore/internal/storage"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name          string
		raw           map[int64]float64
		smallIsBetter bool
		want          map[int64]float64
	}{
		{
			name: "larger is better",
			raw:  map[int64]float64{1: 4, 2: 2, 3: 0},
			want: map[int64]float64{1: 1, 2: 0.5, 3: 0},
		},
		{
			name: "all zero uses epsilon",
			raw:  map[int64]float64{1: 0, 2: 0},
			want: map[int64]float64{1: 0, 2: 0},
		},
		{
			name:          "smaller is better",
			raw:           map[int64]float64{1: 2, 2: 8},
			smallIsBetter: true,
			want:          map[int64]float64{1: 1, 2: 0.25},
		},
		{
			name:          "zero minimum",
			raw:           map[int64]float64{1: 0, 2: 5},
			smallIsBetter: true,
			want:          map[int64]float64{1: 0, 2: 0},
		},
		{
			name: "empty",
			raw:  map[int64]float64{},
			want: map[int64]float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalize(tt.raw, tt.smallIsBetter)
			assert.Len(t, got, len(tt.want))
			for id, want := range tt.want {
				assert.False(t, math.IsNaN(got[id]))
				assert.InDelta(t, want, got[id], 1e-9, "id %d", id)
			}
		})
	}
}

func TestRawSignals(t *testing.T) {
	rows := []storage.MatchRow{
		{URLID: 1, Locations: []int{0, 4}},
		{URLID: 1, Locations: []int{7, 6}},
		{URLID: 2, Locations: []int{3, 3}},
	}

	assert.Equal(t, map[int64]float64{1: 2, 2: 1}, frequency(rows))
	assert.Equal(t, map[int64]float64{1: 4, 2: 6}, location(rows))
	assert.Equal(t, map[int64]float64{1: 1, 2: 0}, distance(rows))

	assert.Nil(t, distance([]storage.MatchRow{{URLID: 1, Locations: []int{2}}}))
	assert.Nil(t, distance(nil))
}
