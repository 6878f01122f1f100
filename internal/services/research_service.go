package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/portfoliolab/internal/domain"
	"github.com/aristath/portfoliolab/internal/modules/filings"
	"github.com/aristath/portfoliolab/internal/modules/news"
	"github.com/aristath/portfoliolab/internal/modules/textmetrics"
)

// FilingArchive lists and downloads regulatory filings.
type FilingArchive interface {
	GetFilingIndex(ctx context.Context, year int, formType string) ([]domain.Filing, error)
	GetCIKs(ctx context.Context) (map[string]int64, error)
	GetDocument(ctx context.Context, filename string) (string, error)
}

// ResearchConfig locates the stored filings and word lists.
type ResearchConfig struct {
	FilingsDir      string
	DictionaryDir   string
	FormType        string
	DaysAfterFiling int
	NewsConcurrency int
}

// FilingSelection is the filing chosen per ticker for one year.
type FilingSelection struct {
	Year    int                    `json:"year"`
	Found   []filings.TickerFiling `json:"found"`
	Missing []string               `json:"missing"`
}

// ResearchService runs the filing and headline analyses.
type ResearchService struct {
	archive   FilingArchive
	headlines news.HeadlineSource
	prices    domain.PriceProvider
	tickers   TickerSource
	cfg       ResearchConfig
	log       zerolog.Logger
}

// NewResearchService creates the service. tickers may be nil.
func NewResearchService(
	archive FilingArchive,
	headlines news.HeadlineSource,
	prices domain.PriceProvider,
	tickers TickerSource,
	cfg ResearchConfig,
	log zerolog.Logger,
) *ResearchService {
	if cfg.FormType == "" {
		cfg.FormType = filings.DefaultFormType
	}
	return &ResearchService{
		archive:   archive,
		headlines: headlines,
		prices:    prices,
		tickers:   tickers,
		cfg:       cfg,
		log:       log.With().Str("service", "research").Logger(),
	}
}

func (s *ResearchService) resolveTickers(ctx context.Context, requested []string) ([]string, error) {
	if len(requested) > 0 {
		return requested, nil
	}
	if s.tickers == nil {
		return nil, fmt.Errorf("no tickers requested and no ticker source configured: %w", domain.ErrPrecondition)
	}
	tickers, err := s.tickers.GetDowJonesTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get default tickers: %w", err)
	}
	return tickers, nil
}

// SelectFilings picks the first filing of the configured form type filed
// in year by each ticker.
func (s *ResearchService) SelectFilings(ctx context.Context, tickers []string, year int) (*FilingSelection, error) {
	tickers, err := s.resolveTickers(ctx, tickers)
	if err != nil {
		return nil, err
	}

	index, err := s.archive.GetFilingIndex(ctx, year, s.cfg.FormType)
	if err != nil {
		return nil, fmt.Errorf("failed to get filing index for %d: %w", year, err)
	}
	ciks, err := s.archive.GetCIKs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get CIK map: %w", err)
	}

	found, missing := filings.FirstFilings(index, ciks, tickers, s.cfg.FormType)
	if len(missing) > 0 {
		s.log.Warn().Strs("tickers", missing).Int("year", year).Msg("No filing found")
	}
	return &FilingSelection{Year: year, Found: found, Missing: missing}, nil
}

// DownloadFilings stores each selected document in the filings directory
// under textmetrics.FilingFileName and returns the written paths. Failed
// downloads are logged and skipped.
func (s *ResearchService) DownloadFilings(ctx context.Context, sel *FilingSelection) ([]string, error) {
	if err := os.MkdirAll(s.cfg.FilingsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create filings directory: %w", err)
	}

	var paths []string
	for _, tf := range sel.Found {
		doc, err := s.archive.GetDocument(ctx, tf.Filing.Filename)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn().Err(err).Str("ticker", tf.Ticker).Msg("Failed to download filing")
			continue
		}
		path := filepath.Join(s.cfg.FilingsDir, textmetrics.FilingFileName(tf.Ticker))
		if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
			return nil, fmt.Errorf("failed to store filing for %s: %w", tf.Ticker, err)
		}
		paths = append(paths, path)
	}
	s.log.Info().Int("stored", len(paths)).Str("dir", s.cfg.FilingsDir).Msg("Downloaded filings")
	return paths, nil
}

// PostFilingVariance measures return variance after each selected filing.
func (s *ResearchService) PostFilingVariance(ctx context.Context, sel *FilingSelection) ([]filings.Variance, error) {
	return filings.NewVarianceAnalyzer(s.prices, s.cfg.DaysAfterFiling, s.log).Analyze(ctx, sel.Found)
}

// TextMetrics scores the stored filings of the tickers.
func (s *ResearchService) TextMetrics(ctx context.Context, tickers []string) ([]textmetrics.Metrics, []string, error) {
	tickers, err := s.resolveTickers(ctx, tickers)
	if err != nil {
		return nil, nil, err
	}
	dicts, err := textmetrics.LoadDictionaries(s.cfg.DictionaryDir)
	if err != nil {
		return nil, nil, err
	}
	return textmetrics.NewAnalyzer(dicts, s.log).AnalyzeFilings(s.cfg.FilingsDir, tickers)
}

// NewsSentiment scores current headlines with the tone word lists and
// averages them per ticker.
func (s *ResearchService) NewsSentiment(ctx context.Context, tickers []string) ([]news.ScoredHeadline, []news.TickerScore, error) {
	tickers, err := s.resolveTickers(ctx, tickers)
	if err != nil {
		return nil, nil, err
	}
	dicts, err := textmetrics.LoadDictionaries(s.cfg.DictionaryDir)
	if err != nil {
		return nil, nil, err
	}

	analyzer := news.NewAnalyzer(s.headlines, news.NewToneScorer(dicts), s.cfg.NewsConcurrency, s.log)
	scored, err := analyzer.Fetch(ctx, tickers)
	if err != nil {
		return nil, nil, err
	}
	return scored, news.AverageScores(scored), nil
}
