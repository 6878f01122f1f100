package main

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/portfoliolab/internal/clientdata"
	"github.com/aristath/portfoliolab/internal/clients/edgar"
	"github.com/aristath/portfoliolab/internal/clients/finviz"
	"github.com/aristath/portfoliolab/internal/clients/fred"
	"github.com/aristath/portfoliolab/internal/clients/tickerlist"
	"github.com/aristath/portfoliolab/internal/clients/yahoo"
	"github.com/aristath/portfoliolab/internal/config"
	"github.com/aristath/portfoliolab/internal/database"
	"github.com/aristath/portfoliolab/internal/domain"
	"github.com/aristath/portfoliolab/internal/metrics"
	"github.com/aristath/portfoliolab/internal/modules/marketdata"
	"github.com/aristath/portfoliolab/internal/modules/optimization"
	"github.com/aristath/portfoliolab/internal/modules/reports"
	"github.com/aristath/portfoliolab/internal/modules/simulation"
	"github.com/aristath/portfoliolab/internal/services"
)

// app holds the wired dependencies shared by every command.
type app struct {
	cfg *config.Config
	log zerolog.Logger

	resultsDB *database.DB
	cacheDB   *database.DB

	cache   *clientdata.Repository
	reports *reports.Repository
	yahoo   *yahoo.Client
	fred    *fred.Client
	tickers *tickerlist.Client
	edgar   *edgar.Client
	finviz  *finviz.Client
	metrics *metrics.Registry

	analysis *services.AnalysisService
	research *services.ResearchService
}

// newApp opens both databases and wires clients, modules and services.
// A non-nil rates overrides the FRED risk-free rate.
func newApp(cfg *config.Config, log zerolog.Logger, rates domain.RateProvider) (*app, error) {
	resultsDB, err := openDB(cfg.DataDir, database.NameResults, database.ProfileStandard)
	if err != nil {
		return nil, err
	}
	cacheDB, err := openDB(cfg.DataDir, database.NameCache, database.ProfileCache)
	if err != nil {
		resultsDB.Close()
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		log:       log,
		resultsDB: resultsDB,
		cacheDB:   cacheDB,
		metrics:   metrics.NewRegistry(),
	}
	a.cache = clientdata.NewRepository(cacheDB.Conn())
	a.reports = reports.NewRepository(resultsDB.Conn(), log)
	a.yahoo = yahoo.NewClient(cfg.YahooBaseURL, a.cache, log)
	a.fred = fred.NewClient(cfg.FredBaseURL, cfg.FredSeries, a.cache, log)
	a.tickers = tickerlist.NewClient(cfg.TickerListURL, a.cache, log)
	a.edgar = edgar.NewClient(cfg.EdgarBaseURL, cfg.EdgarUserAgent, a.cache, log)
	a.finviz = finviz.NewClient(cfg.FinvizBaseURL, a.cache, log)

	if rates == nil {
		rates = a.fred
	}

	engine := optimization.NewEngine(cfg.EngineParams(), log)
	scheduler := optimization.NewScheduler(engine, rates, log)
	scheduler.SetObserver(a.metrics)

	a.analysis = services.NewAnalysisService(
		marketdata.NewLoader(a.yahoo, cfg.FetchConcurrency, log),
		a.tickers,
		scheduler,
		optimization.NewBacktester(log),
		simulation.NewSimulator(cfg.SimulationParams(), log),
		a.reports,
		log,
	)
	a.analysis.AddRunObserver(a.metrics)

	a.research = services.NewResearchService(a.edgar, a.finviz, a.yahoo, a.tickers, cfg.ResearchConfig(), log)

	return a, nil
}

// Close closes both databases.
func (a *app) Close() {
	if err := a.cacheDB.Close(); err != nil {
		a.log.Error().Err(err).Msg("Failed to close cache database")
	}
	if err := a.resultsDB.Close(); err != nil {
		a.log.Error().Err(err).Msg("Failed to close results database")
	}
}

func openDB(dataDir, name string, profile database.DatabaseProfile) (*database.DB, error) {
	db, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, name+".db"),
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", name, err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate %s database: %w", name, err)
	}
	return db, nil
}
