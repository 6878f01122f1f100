package optimization

import "time"

// SweepObserver receives per-window outcomes from the sweep scheduler.
// The metrics registry implements it.
type SweepObserver interface {
	ObserveWindow(window string, elapsed time.Duration, failures map[Method]error)
	ObserveSkippedWindow(window string, reason error)
}

type noopObserver struct{}

func (noopObserver) ObserveWindow(string, time.Duration, map[Method]error) {}
func (noopObserver) ObserveSkippedWindow(string, error) {}
