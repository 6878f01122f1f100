package optimization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfoliolab/internal/domain"
)

func TestNewBoxConstraints(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		upper   float64
		wantErr error
	}{
		{name: "thirty tickers at ten percent", n: 30, upper: 0.10},
		{name: "exactly ten tickers", n: 10, upper: 0.10},
		{name: "too few tickers", n: 9, upper: 0.10, wantErr: domain.ErrInfeasibleBounds},
		{name: "zero cap", n: 5, upper: 0, wantErr: domain.ErrInfeasibleBounds},
		{name: "no tickers", n: 0, upper: 0.5, wantErr: domain.ErrDataInsufficiency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBoxConstraints(tt.n, tt.upper)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBoxConstraints_Project(t *testing.T) {
	box, err := NewBoxConstraints(4, 0.4)
	require.NoError(t, err)

	tests := []struct {
		name string
		x    []float64
		want []float64
	}{
		{name: "already feasible", x: []float64{0.25, 0.25, 0.25, 0.25}, want: []float64{0.25, 0.25, 0.25, 0.25}},
		{name: "caps the largest", x: []float64{5, 0, 0, 0}, want: []float64{0.4, 0.2, 0.2, 0.2}},
		{name: "drops negatives", x: []float64{0.6, 0.6, -3, -3}, want: []float64{0.4, 0.4, 0.1, 0.1}},
		{name: "shift invariant", x: []float64{10.25, 10.25, 10.25, 10.25}, want: []float64{0.25, 0.25, 0.25, 0.25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := box.Project(tt.x)
			assert.True(t, box.Feasible(w, 1e-9), "weights %v", w)
			assert.InDeltaSlice(t, tt.want, w, 1e-9)
		})
	}
}

func TestBoxConstraints_Feasible(t *testing.T) {
	box := BoxConstraints{N: 3, Upper: 0.5}

	assert.True(t, box.Feasible([]float64{0.5, 0.25, 0.25}, 1e-9))
	assert.False(t, box.Feasible([]float64{0.6, 0.2, 0.2}, 1e-9))
	assert.False(t, box.Feasible([]float64{0.5, 0.5, -0.0001}, 1e-9))
	assert.False(t, box.Feasible([]float64{0.5, 0.5}, 1e-9))
}
