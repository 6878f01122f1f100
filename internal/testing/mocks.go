package testing

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/portfoliolab/internal/domain"
)

// MockPriceProvider serves bars from memory.
type MockPriceProvider struct {
	mu    sync.RWMutex
	bars  map[string][]domain.DailyBar
	errs  map[string]error
	calls map[string]int
}

// NewMockPriceProvider creates an empty mock price provider
func NewMockPriceProvider() *MockPriceProvider {
	return &MockPriceProvider{
		bars:  make(map[string][]domain.DailyBar),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

// SetBars sets the bars returned for ticker
func (m *MockPriceProvider) SetBars(ticker string, bars []domain.DailyBar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bars[ticker] = bars
}

// SetError makes requests for ticker fail
func (m *MockPriceProvider) SetError(ticker string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[ticker] = err
}

// Calls returns how often ticker was requested
func (m *MockPriceProvider) Calls(ticker string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[ticker]
}

// GetDailyBars implements domain.PriceProvider
func (m *MockPriceProvider) GetDailyBars(_ context.Context, ticker string, from, to time.Time) ([]domain.DailyBar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[ticker]++
	if err := m.errs[ticker]; err != nil {
		return nil, err
	}
	var out []domain.DailyBar
	for _, b := range m.bars[ticker] {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

// MockRateProvider returns a fixed rate and records requested ranges
type MockRateProvider struct {
	mu     sync.Mutex
	Rate   float64
	Err    error
	ranges [][2]time.Time
}

// GetRate implements domain.RateProvider
func (m *MockRateProvider) GetRate(_ context.Context, from, to time.Time) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ranges = append(m.ranges, [2]time.Time{from, to})
	return m.Rate, m.Err
}

// Ranges returns the requested date ranges in call order
func (m *MockRateProvider) Ranges() [][2]time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][2]time.Time(nil), m.ranges...)
}
