// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/aristath/portfoliolab/internal/clients/edgar"
	"github.com/aristath/portfoliolab/internal/clients/finviz"
	"github.com/aristath/portfoliolab/internal/clients/fred"
	"github.com/aristath/portfoliolab/internal/clients/tickerlist"
	"github.com/aristath/portfoliolab/internal/clients/yahoo"
	"github.com/aristath/portfoliolab/internal/export"
	"github.com/aristath/portfoliolab/internal/modules/features"
	"github.com/aristath/portfoliolab/internal/modules/filings"
	"github.com/aristath/portfoliolab/internal/modules/marketdata"
	"github.com/aristath/portfoliolab/internal/modules/optimization"
	"github.com/aristath/portfoliolab/internal/modules/simulation"
	"github.com/aristath/portfoliolab/internal/services"
	"github.com/aristath/portfoliolab/internal/utils"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the results and cache databases, always absolute
	LogLevel string
	Port     int
	DevMode  bool

	// Universe. Empty Tickers means the scraped Dow Jones list.
	Tickers    []string
	BaseTicker string

	// Allocation sweep
	StartYear      int
	EndYear        int
	WindowLength   int
	NumSimulations int
	Seed           uint64
	MaxWeight      float64
	Lookahead      int

	// Long-short simulation
	StartingCapital   float64
	TransactionCostBP float64
	BorrowRate        float64
	HoldoutYear       int
	TrainStartYear    int
	TrainEndYear      int

	// External data
	FredSeries       string
	YahooBaseURL     string
	FredBaseURL      string
	TickerListURL    string
	FetchConcurrency int

	// Filing and headline research
	EdgarBaseURL    string
	EdgarUserAgent  string // SEC requires a contact address
	FinvizBaseURL   string
	FilingYear      int
	FormType        string
	DaysAfterFiling int
	FilingsDir      string
	DictionaryDir   string

	// Serve mode
	RefreshSchedule string // six-field cron schedule (with seconds)
	RefreshTimeout  time.Duration
	RunRetention    time.Duration

	Export *ExportConfig
}

// ExportConfig holds the S3-compatible bucket used for run archives.
// Export is disabled when Bucket is empty.
type ExportConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("PORTFOLIOLAB_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	seed, err := strconv.ParseUint(getEnv("PORTFOLIOLAB_SEED", strconv.FormatUint(optimization.DefaultSeed, 10)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid PORTFOLIOLAB_SEED: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvAsInt("PORT", 8002),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		Tickers:    utils.ParseTickers(getEnv("PORTFOLIOLAB_TICKERS", "")),
		BaseTicker: getEnv("PORTFOLIOLAB_BASE_TICKER", "AAPL"),

		StartYear:      getEnvAsInt("PORTFOLIOLAB_START_YEAR", optimization.DefaultFirstYear),
		EndYear:        getEnvAsInt("PORTFOLIOLAB_END_YEAR", optimization.DefaultLastYear),
		WindowLength:   getEnvAsInt("PORTFOLIOLAB_WINDOW_LENGTH", optimization.DefaultWindowLength),
		NumSimulations: getEnvAsInt("PORTFOLIOLAB_NUM_SIMULATIONS", optimization.DefaultNumSimulations),
		Seed:           seed,
		MaxWeight:      getEnvAsFloat("PORTFOLIOLAB_MAX_WEIGHT", optimization.DefaultMaxWeight),
		Lookahead:      getEnvAsInt("PORTFOLIOLAB_LOOKAHEAD", optimization.DefaultLookahead),

		StartingCapital:   getEnvAsFloat("PORTFOLIOLAB_STARTING_CAPITAL", simulation.DefaultStartingCapital),
		TransactionCostBP: getEnvAsFloat("PORTFOLIOLAB_TRANSACTION_COST_BP", simulation.DefaultTransactionCostBP),
		BorrowRate:        getEnvAsFloat("PORTFOLIOLAB_BORROW_RATE", simulation.DefaultBorrowRate),
		HoldoutYear:       getEnvAsInt("PORTFOLIOLAB_HOLDOUT_YEAR", features.DefaultHoldoutYear),
		TrainStartYear:    getEnvAsInt("PORTFOLIOLAB_TRAIN_START_YEAR", features.DefaultTrainStartYear),
		TrainEndYear:      getEnvAsInt("PORTFOLIOLAB_TRAIN_END_YEAR", features.DefaultTrainEndYear),

		FredSeries:       getEnv("FRED_SERIES", fred.DefaultSeries),
		YahooBaseURL:     getEnv("YAHOO_BASE_URL", yahoo.DefaultBaseURL),
		FredBaseURL:      getEnv("FRED_BASE_URL", fred.DefaultBaseURL),
		TickerListURL:    getEnv("TICKER_LIST_URL", tickerlist.DefaultURL),
		FetchConcurrency: getEnvAsInt("FETCH_CONCURRENCY", marketdata.DefaultConcurrency),

		EdgarBaseURL:    getEnv("EDGAR_BASE_URL", edgar.DefaultBaseURL),
		EdgarUserAgent:  getEnv("EDGAR_USER_AGENT", edgar.DefaultUserAgent),
		FinvizBaseURL:   getEnv("FINVIZ_BASE_URL", finviz.DefaultBaseURL),
		FilingYear:      getEnvAsInt("PORTFOLIOLAB_FILING_YEAR", optimization.DefaultLastYear),
		FormType:        getEnv("PORTFOLIOLAB_FORM_TYPE", filings.DefaultFormType),
		DaysAfterFiling: getEnvAsInt("PORTFOLIOLAB_DAYS_AFTER_FILING", filings.DefaultDaysAfterFiling),
		FilingsDir:      resolveDir(absDataDir, getEnv("PORTFOLIOLAB_FILINGS_DIR", "filings")),
		DictionaryDir:   resolveDir(absDataDir, getEnv("PORTFOLIOLAB_DICTIONARY_DIR", "reference")),

		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "0 0 6 * * 6"), // Saturdays 06:00
		RefreshTimeout:  time.Duration(getEnvAsInt("REFRESH_TIMEOUT_MINUTES", 60)) * time.Minute,
		RunRetention:    time.Duration(getEnvAsInt("RUN_RETENTION_DAYS", 90)) * 24 * time.Hour,

		Export: &ExportConfig{
			Bucket:          getEnv("EXPORT_BUCKET", ""),
			Region:          getEnv("EXPORT_REGION", "auto"),
			Endpoint:        getEnv("EXPORT_ENDPOINT", ""),
			AccessKeyID:     getEnv("EXPORT_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("EXPORT_SECRET_ACCESS_KEY", ""),
			Prefix:          getEnv("EXPORT_PREFIX", "portfoliolab/"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks ranges and cross-field constraints
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.StartYear > c.EndYear {
		return fmt.Errorf("start year %d after end year %d", c.StartYear, c.EndYear)
	}
	if c.WindowLength < 1 {
		return fmt.Errorf("window length must be at least 1, got %d", c.WindowLength)
	}
	if c.NumSimulations < 1 {
		return fmt.Errorf("number of simulations must be at least 1, got %d", c.NumSimulations)
	}
	if !(c.MaxWeight > 0 && c.MaxWeight <= 1) {
		return fmt.Errorf("max weight must be in (0, 1], got %v", c.MaxWeight)
	}
	if c.Lookahead < 0 {
		return fmt.Errorf("lookahead must not be negative, got %d", c.Lookahead)
	}
	if err := c.SimulationParams().Validate(); err != nil {
		return err
	}
	if c.TrainStartYear > c.TrainEndYear || c.TrainEndYear >= c.HoldoutYear {
		return fmt.Errorf("training years %d-%d must precede holdout year %d", c.TrainStartYear, c.TrainEndYear, c.HoldoutYear)
	}
	if c.FetchConcurrency < 1 {
		return fmt.Errorf("fetch concurrency must be at least 1, got %d", c.FetchConcurrency)
	}
	if c.DaysAfterFiling < 2 {
		return fmt.Errorf("days after filing must be at least 2, got %d", c.DaysAfterFiling)
	}
	return nil
}

// EngineParams returns the allocation engine settings.
func (c *Config) EngineParams() optimization.EngineParams {
	return optimization.EngineParams{
		NumSimulations: c.NumSimulations,
		Seed:           c.Seed,
		MaxWeight:      c.MaxWeight,
	}
}

// SweepParams returns the window schedule settings.
func (c *Config) SweepParams() optimization.SweepParams {
	return optimization.SweepParams{
		FirstYear:    c.StartYear,
		LastYear:     c.EndYear,
		WindowLength: c.WindowLength,
	}
}

// SimulationParams returns the long-short simulation settings.
func (c *Config) SimulationParams() simulation.Params {
	p := simulation.DefaultParams()
	p.StartingCapital = c.StartingCapital
	p.TransactionCostBP = c.TransactionCostBP
	p.BorrowRate = c.BorrowRate
	return p
}

// SplitParams returns the model/holdout year split.
func (c *Config) SplitParams() features.SplitParams {
	return features.SplitParams{
		HoldoutYear:    c.HoldoutYear,
		TrainStartYear: c.TrainStartYear,
		TrainEndYear:   c.TrainEndYear,
	}
}

// SweepRequest returns the default request used by serve mode.
func (c *Config) SweepRequest() services.SweepRequest {
	return services.SweepRequest{
		Tickers:   slices.Clone(c.Tickers),
		Sweep:     c.SweepParams(),
		Lookahead: c.Lookahead,
	}
}

// ResearchConfig returns the filing and headline research settings.
func (c *Config) ResearchConfig() services.ResearchConfig {
	return services.ResearchConfig{
		FilingsDir:      c.FilingsDir,
		DictionaryDir:   c.DictionaryDir,
		FormType:        c.FormType,
		DaysAfterFiling: c.DaysAfterFiling,
		NewsConcurrency: c.FetchConcurrency,
	}
}

// SimulationRequest returns the default simulation request.
func (c *Config) SimulationRequest() services.SimulationRequest {
	return services.SimulationRequest{
		Tickers:    slices.Clone(c.Tickers),
		BaseTicker: c.BaseTicker,
		Split:      c.SplitParams(),
	}
}

// S3Config converts the export settings for the S3 client.
func (c *ExportConfig) S3Config() export.S3Config {
	return export.S3Config{
		Bucket:          c.Bucket,
		Region:          c.Region,
		Endpoint:        c.Endpoint,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
	}
}

// Enabled reports whether a bucket is configured.
func (c *ExportConfig) Enabled() bool {
	return c != nil && c.Bucket != ""
}

// resolveDir anchors a relative directory at the data directory.
func resolveDir(dataDir, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(dataDir, dir)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
