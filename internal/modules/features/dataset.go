package features

import (
	"time"
)

// Split defaults.
const (
	DefaultHoldoutYear    = 2023
	DefaultTrainStartYear = 2010
	DefaultTrainEndYear   = 2022
)

// PairRow joins the base and partner feature rows of one date.
type PairRow struct {
	Date    time.Time
	Base    Row
	Partner Row
}

// Merge inner-joins base and partner rows on date.
func Merge(base, partner []Row) []PairRow {
	byDate := make(map[int64]Row, len(partner))
	for _, r := range partner {
		byDate[r.Date.Unix()] = r
	}
	out := make([]PairRow, 0, len(base))
	for _, r := range base {
		if p, ok := byDate[r.Date.Unix()]; ok {
			out = append(out, PairRow{Date: r.Date, Base: r, Partner: p})
		}
	}
	return out
}

// ColumnNames returns the dataset column names for a base/partner pair.
func ColumnNames(base, partner string) []string {
	names := make([]string, 0, 2*len(FeatureNames))
	for _, n := range FeatureNames {
		names = append(names, base+"_"+n)
	}
	for _, n := range FeatureNames {
		names = append(names, partner+"_"+n)
	}
	return names
}

// Dataset is a feature matrix with next-day direction labels.
// Closes carries the base ticker's adjusted close for simulation.
type Dataset struct {
	Dates  []time.Time
	X      [][]float64
	Y      []int
	Closes []float64
}

// Len returns the number of samples.
func (d Dataset) Len() int {
	return len(d.Y)
}

// SplitParams selects the model and holdout years.
type SplitParams struct {
	HoldoutYear    int `json:"holdout_year"`
	TrainStartYear int `json:"train_start_year"`
	TrainEndYear   int `json:"train_end_year"`
}

// DefaultSplitParams trains on 2010-2022 and holds out 2023.
func DefaultSplitParams() SplitParams {
	return SplitParams{
		HoldoutYear:    DefaultHoldoutYear,
		TrainStartYear: DefaultTrainStartYear,
		TrainEndYear:   DefaultTrainEndYear,
	}
}

// SplitHoldout partitions rows by calendar year into a model set and a
// holdout set. Each label is 1 when the next row of the same set has a
// positive adjusted-close change; the last row of a set is labelled 0.
func SplitHoldout(rows []PairRow, p SplitParams) (model, holdout Dataset) {
	var modelRows, holdoutRows []PairRow
	for _, r := range rows {
		y := r.Date.Year()
		if y == p.HoldoutYear {
			holdoutRows = append(holdoutRows, r)
		}
		if y >= p.TrainStartYear && y <= p.TrainEndYear {
			modelRows = append(modelRows, r)
		}
	}
	return buildDataset(modelRows), buildDataset(holdoutRows)
}

func buildDataset(rows []PairRow) Dataset {
	ds := Dataset{
		Dates:  make([]time.Time, len(rows)),
		X:      make([][]float64, len(rows)),
		Y:      make([]int, len(rows)),
		Closes: make([]float64, len(rows)),
	}
	for i, r := range rows {
		ds.Dates[i] = r.Date
		ds.X[i] = append(r.Base.Vector(), r.Partner.Vector()...)
		ds.Closes[i] = r.Base.AdjClose
		if i+1 < len(rows) && rows[i+1].Base.ChAdjClose > 0 {
			ds.Y[i] = 1
		}
	}
	return ds
}
