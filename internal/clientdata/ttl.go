package clientdata

import "time"

// TTL constants for cached data, added to time.Now() to compute expires_at.
const (
	// Closed-year price history only changes with corporate-action adjustments
	TTLPriceHistory = 24 * time.Hour
	// Treasury yields are published daily
	TTLRiskFreeRate = 24 * time.Hour
	// Index membership changes a few times a year
	TTLTickerList = 7 * 24 * time.Hour
	// EDGAR quarterly indexes grow during the current quarter only
	TTLFilingIndex = 24 * time.Hour
	// The ticker to CIK map rarely changes
	TTLCIKMap = 7 * 24 * time.Hour
	// Headlines turn over within hours
	TTLHeadlines = time.Hour
)
