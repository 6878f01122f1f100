package domain

import (
	"context"
	"time"
)

// PriceProvider returns daily bars for a ticker over an inclusive date range.
// An unavailable ticker yields an empty slice, not an error.
type PriceProvider interface {
	GetDailyBars(ctx context.Context, ticker string, from, to time.Time) ([]DailyBar, error)
}

// RateProvider returns a single annualized risk-free rate for a date range.
type RateProvider interface {
	GetRate(ctx context.Context, from, to time.Time) (float64, error)
}

// RateFunc adapts a function to RateProvider.
type RateFunc func(ctx context.Context, from, to time.Time) (float64, error)

// GetRate implements RateProvider.
func (f RateFunc) GetRate(ctx context.Context, from, to time.Time) (float64, error) {
	return f(ctx, from, to)
}

// FixedRate is a RateProvider returning the same rate for every range.
type FixedRate float64

// GetRate implements RateProvider.
func (r FixedRate) GetRate(context.Context, time.Time, time.Time) (float64, error) {
	return float64(r), nil
}
