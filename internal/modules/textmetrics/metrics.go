package textmetrics

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/portfoliolab/internal/domain"
)

// Metrics are the text scores of one filing. Uncertainty and Tone are
// shares of non-stopword tokens.
type Metrics struct {
	Ticker      string  `json:"ticker"`
	Uncertainty float64 `json:"uncertainty"`
	Tone        float64 `json:"tone"` // positive share minus negative share
	FOG         float64 `json:"fog"`
	Readability float64 `json:"readability"` // Flesch reading ease
}

type textStats struct {
	words     int
	sentences int
	nonStop   []string
	complex   int
	syllables int
}

func collect(text string) textStats {
	words := Tokenize(text)
	s := textStats{words: len(words), sentences: CountSentences(text)}
	for _, w := range words {
		n := CountSyllables(w)
		s.syllables += n
		if IsStopWord(w) {
			continue
		}
		s.nonStop = append(s.nonStop, w)
		if n > 2 {
			s.complex++
		}
	}
	return s
}

// FOG returns the Gunning FOG index: 0.4 * (words per sentence + share of
// non-stopwords with more than two syllables).
func FOG(text string) (float64, error) {
	s := collect(text)
	if s.sentences == 0 || len(s.nonStop) == 0 {
		return 0, fmt.Errorf("fog index: %w", domain.ErrDataInsufficiency)
	}
	return s.fog(), nil
}

func (s textStats) fog() float64 {
	return 0.4 * (float64(s.words)/float64(s.sentences) + float64(s.complex)/float64(len(s.nonStop)))
}

// FleschReadingEase returns 206.835 - 1.015 * words per sentence - 84.6 *
// syllables per word.
func FleschReadingEase(text string) (float64, error) {
	s := collect(text)
	if s.sentences == 0 || s.words == 0 {
		return 0, fmt.Errorf("flesch reading ease: %w", domain.ErrDataInsufficiency)
	}
	return s.flesch(), nil
}

func (s textStats) flesch() float64 {
	return 206.835 - 1.015*float64(s.words)/float64(s.sentences) - 84.6*float64(s.syllables)/float64(s.words)
}

// Score computes every metric for already cleaned text.
func Score(text string, dicts Dictionaries) (Metrics, error) {
	s := collect(text)
	if s.sentences == 0 || len(s.nonStop) == 0 {
		return Metrics{}, fmt.Errorf("no scorable words: %w", domain.ErrDataInsufficiency)
	}

	var uncertain, positive, negative int
	for _, w := range s.nonStop {
		if dicts.Uncertainty.Contains(w) {
			uncertain++
		}
		if dicts.Positive.Contains(w) {
			positive++
		}
		if dicts.Negative.Contains(w) {
			negative++
		}
	}
	n := float64(len(s.nonStop))

	return Metrics{
		Uncertainty: float64(uncertain) / n,
		Tone:        float64(positive)/n - float64(negative)/n,
		FOG:         s.fog(),
		Readability: s.flesch(),
	}, nil
}

// FilingFileName is the file a ticker's annual report is stored under.
func FilingFileName(ticker string) string {
	return ticker + "_10K.txt"
}

// Analyzer scores stored filings.
type Analyzer struct {
	dicts Dictionaries
	log   zerolog.Logger
}

// NewAnalyzer creates an analyzer over the given word lists.
func NewAnalyzer(dicts Dictionaries, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		dicts: dicts,
		log:   log.With().Str("component", "textmetrics").Logger(),
	}
}

// AnalyzeDocument strips markup from a raw filing and scores it.
func (a *Analyzer) AnalyzeDocument(ticker, raw string) (Metrics, error) {
	text, err := CleanHTML(raw)
	if err != nil {
		return Metrics{}, err
	}
	m, err := Score(text, a.dicts)
	if err != nil {
		return Metrics{}, fmt.Errorf("%s: %w", ticker, err)
	}
	m.Ticker = ticker
	return m, nil
}

// AnalyzeFilings scores FilingFileName(ticker) in dir for every ticker.
// Tickers without a file, or whose filing has no scorable text, are
// returned in missing.
func (a *Analyzer) AnalyzeFilings(dir string, tickers []string) (results []Metrics, missing []string, err error) {
	for _, ticker := range tickers {
		raw, err := os.ReadFile(filepath.Join(dir, FilingFileName(ticker)))
		if errors.Is(err, fs.ErrNotExist) {
			a.log.Warn().Str("ticker", ticker).Msg("No stored filing")
			missing = append(missing, ticker)
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read filing for %s: %w", ticker, err)
		}

		m, err := a.AnalyzeDocument(ticker, string(raw))
		if errors.Is(err, domain.ErrDataInsufficiency) {
			a.log.Warn().Err(err).Str("ticker", ticker).Msg("Filing has no scorable text")
			missing = append(missing, ticker)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		results = append(results, m)
	}
	return results, missing, nil
}
