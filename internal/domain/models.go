// Package domain provides the price data model shared by the allocation,
// backtest and simulation modules.
package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// PricePoint is a single close observation.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceSeries is the close history of one ticker, strictly increasing by date.
// Non-trading days are absent rather than null-filled.
type PriceSeries struct {
	Ticker string       `json:"ticker"`
	Points []PricePoint `json:"points"`
}

// NewPriceSeries validates ordering and price positivity.
func NewPriceSeries(ticker string, points []PricePoint) (PriceSeries, error) {
	for i, p := range points {
		if p.Close <= 0 || math.IsNaN(p.Close) || math.IsInf(p.Close, 0) {
			return PriceSeries{}, fmt.Errorf("%s: invalid close %v on %s", ticker, p.Close, p.Date.Format("2006-01-02"))
		}
		if i > 0 && !p.Date.After(points[i-1].Date) {
			return PriceSeries{}, fmt.Errorf("%s: dates not strictly increasing at %s", ticker, p.Date.Format("2006-01-02"))
		}
	}
	return PriceSeries{Ticker: ticker, Points: points}, nil
}

// Len returns the number of observations.
func (s PriceSeries) Len() int {
	return len(s.Points)
}

// DailyBar is one OHLCV row as delivered by the price provider.
type DailyBar struct {
	Date     time.Time `json:"date" msgpack:"d"`
	Open     float64   `json:"open" msgpack:"o"`
	High     float64   `json:"high" msgpack:"h"`
	Low      float64   `json:"low" msgpack:"l"`
	Close    float64   `json:"close" msgpack:"c"`
	AdjClose float64   `json:"adj_close" msgpack:"a"`
	Volume   float64   `json:"volume" msgpack:"v"`
}

// SeriesFromBars builds a close series, preferring the adjusted close.
func SeriesFromBars(ticker string, bars []DailyBar) (PriceSeries, error) {
	points := make([]PricePoint, 0, len(bars))
	for _, b := range bars {
		c := b.AdjClose
		if c <= 0 {
			c = b.Close
		}
		points = append(points, PricePoint{Date: b.Date, Close: c})
	}
	return NewPriceSeries(ticker, points)
}

// PriceFrame holds close prices of several tickers aligned on common dates.
// Closes[t][j] is the close of Tickers[j] on Dates[t].
type PriceFrame struct {
	Dates   []time.Time
	Tickers []string
	Closes  [][]float64
}

// Align inner-joins the series on their common dates. Empty series are
// skipped so callers can work with partial ticker sets.
func Align(series []PriceSeries) PriceFrame {
	var kept []PriceSeries
	for _, s := range series {
		if s.Len() > 0 {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return PriceFrame{}
	}

	counts := make(map[int64]int)
	for _, s := range kept {
		for _, p := range s.Points {
			counts[p.Date.Unix()]++
		}
	}
	var common []int64
	for d, c := range counts {
		if c == len(kept) {
			common = append(common, d)
		}
	}
	sort.Slice(common, func(a, b int) bool { return common[a] < common[b] })

	row := make(map[int64]int, len(common))
	frame := PriceFrame{
		Dates:   make([]time.Time, len(common)),
		Tickers: make([]string, len(kept)),
		Closes:  make([][]float64, len(common)),
	}
	for t, d := range common {
		row[d] = t
		frame.Dates[t] = time.Unix(d, 0).UTC()
		frame.Closes[t] = make([]float64, len(kept))
	}
	for j, s := range kept {
		frame.Tickers[j] = s.Ticker
		for _, p := range s.Points {
			if t, ok := row[p.Date.Unix()]; ok {
				frame.Closes[t][j] = p.Close
			}
		}
	}
	return frame
}

// Len returns the number of dates.
func (f PriceFrame) Len() int {
	return len(f.Dates)
}

// Empty reports whether the frame has no observations.
func (f PriceFrame) Empty() bool {
	return len(f.Dates) == 0 || len(f.Tickers) == 0
}

// Between returns the rows with from <= date <= to.
func (f PriceFrame) Between(from, to time.Time) PriceFrame {
	lo := sort.Search(len(f.Dates), func(i int) bool { return !f.Dates[i].Before(from) })
	hi := sort.Search(len(f.Dates), func(i int) bool { return f.Dates[i].After(to) })
	if hi < lo {
		hi = lo
	}
	return PriceFrame{Dates: f.Dates[lo:hi], Tickers: f.Tickers, Closes: f.Closes[lo:hi]}
}

// MonthEnd keeps the last observation of every calendar month.
func (f PriceFrame) MonthEnd() PriceFrame {
	out := PriceFrame{Tickers: f.Tickers}
	for t := range f.Dates {
		last := t == len(f.Dates)-1
		if !last {
			y1, m1, _ := f.Dates[t].Date()
			y2, m2, _ := f.Dates[t+1].Date()
			last = y1 != y2 || m1 != m2
		}
		if last {
			out.Dates = append(out.Dates, f.Dates[t])
			out.Closes = append(out.Closes, f.Closes[t])
		}
	}
	return out
}

// Column returns the closes of one ticker.
func (f PriceFrame) Column(ticker string) ([]float64, bool) {
	j := f.TickerIndex(ticker)
	if j < 0 {
		return nil, false
	}
	col := make([]float64, len(f.Dates))
	for t := range f.Dates {
		col[t] = f.Closes[t][j]
	}
	return col, true
}

// TickerIndex returns the column of ticker or -1.
func (f PriceFrame) TickerIndex(ticker string) int {
	for j, t := range f.Tickers {
		if t == ticker {
			return j
		}
	}
	return -1
}

// PctChange returns simple period returns, one row per date after the first.
func (f PriceFrame) PctChange() [][]float64 {
	if len(f.Dates) < 2 {
		return nil
	}
	out := make([][]float64, len(f.Dates)-1)
	for t := 1; t < len(f.Dates); t++ {
		row := make([]float64, len(f.Tickers))
		for j := range f.Tickers {
			row[j] = f.Closes[t][j]/f.Closes[t-1][j] - 1
		}
		out[t-1] = row
	}
	return out
}

// Position is the daily exposure of the long-short strategy. There is no
// flat state.
type Position float64

const (
	Long  Position = 1
	Short Position = -1
)

// PositionFromPrediction maps a binary up/down label to an exposure.
func PositionFromPrediction(pred int) Position {
	if pred == 1 {
		return Long
	}
	return Short
}
