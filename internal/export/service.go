package export

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/aristath/portfoliolab/internal/modules/reports"
)

const (
	archivePrefix = "portfoliolab-run-"
	archiveSuffix = ".tar.gz"
	timestampFmt  = "2006-01-02-150405"
)

// ObjectStore is the subset of S3Client used by the service.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
	List(ctx context.Context, prefix string) ([]types.Object, error)
}

// RunSource reads stored runs.
type RunSource interface {
	GetRun(id string) (*reports.Run, error)
	GetAllocations(runID string) ([]reports.AllocationRow, error)
	GetWindowStats(runID string) ([]reports.WindowStat, error)
	GetFailures(runID string) ([]reports.Failure, error)
	GetBacktest(runID string) ([]reports.BacktestRow, error)
	GetEquity(runID string) (*reports.Equity, error)
}

// Manifest describes the files of an archive.
type Manifest struct {
	RunID     string      `json:"run_id"`
	Kind      string      `json:"kind"`
	CreatedAt time.Time   `json:"created_at"`
	Files     []FileEntry `json:"files"`
}

// FileEntry is one archived table.
type FileEntry struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// ExportInfo describes an uploaded archive.
type ExportInfo struct {
	Key       string    `json:"key"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
}

// Service exports stored runs as tar.gz archives of JSON tables
type Service struct {
	store  ObjectStore
	runs   RunSource
	prefix string
	now    func() time.Time
	log    zerolog.Logger
}

// NewService creates an export service. prefix is prepended to object keys.
func NewService(store ObjectStore, runs RunSource, prefix string, log zerolog.Logger) *Service {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Service{
		store:  store,
		runs:   runs,
		prefix: prefix,
		now:    time.Now,
		log:    log.With().Str("service", "export").Logger(),
	}
}

// ExportRun archives the run and uploads it, returning the object key.
func (s *Service) ExportRun(ctx context.Context, runID string) (string, error) {
	startTime := time.Now()

	var buf bytes.Buffer
	if err := s.WriteArchive(&buf, runID); err != nil {
		return "", err
	}

	key := fmt.Sprintf("%s%s%s-%s%s", s.prefix, archivePrefix, runID, s.now().UTC().Format(timestampFmt), archiveSuffix)
	size := int64(buf.Len())
	if err := s.store.Upload(ctx, key, &buf, "application/gzip"); err != nil {
		return "", err
	}

	s.log.Info().
		Str("run_id", runID).
		Str("key", key).
		Int64("size_bytes", size).
		Dur("duration", time.Since(startTime)).
		Msg("Run exported")
	return key, nil
}

// WriteArchive writes the run's tables and a manifest as a tar.gz stream.
func (s *Service) WriteArchive(w io.Writer, runID string) error {
	run, err := s.runs.GetRun(runID)
	if err != nil {
		return err
	}

	tables, err := s.collect(run)
	if err != nil {
		return err
	}

	manifest := Manifest{RunID: run.ID, Kind: string(run.Kind), CreatedAt: run.CreatedAt}
	files := make(map[string][]byte, len(tables)+1)
	names := make([]string, 0, len(tables))
	for name, v := range tables {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", name, err)
		}
		files[name] = data
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		manifest.Files = append(manifest.Files, FileEntry{
			Name:      name,
			SizeBytes: int64(len(files[name])),
			Checksum:  checksum(files[name]),
		})
	}
	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	gzipWriter := gzip.NewWriter(w)
	tarWriter := tar.NewWriter(gzipWriter)
	modTime := s.now()

	if err := addFile(tarWriter, "manifest.json", manifestData, modTime); err != nil {
		return err
	}
	for _, name := range names {
		if err := addFile(tarWriter, name, files[name], modTime); err != nil {
			return err
		}
	}

	if err := tarWriter.Close(); err != nil {
		return fmt.Errorf("failed to close tar writer: %w", err)
	}
	if err := gzipWriter.Close(); err != nil {
		return fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return nil
}

func (s *Service) collect(run *reports.Run) (map[string]interface{}, error) {
	tables := map[string]interface{}{"run.json": run}

	switch run.Kind {
	case reports.KindSweep, reports.KindBacktest:
		allocations, err := s.runs.GetAllocations(run.ID)
		if err != nil {
			return nil, err
		}
		stats, err := s.runs.GetWindowStats(run.ID)
		if err != nil {
			return nil, err
		}
		failures, err := s.runs.GetFailures(run.ID)
		if err != nil {
			return nil, err
		}
		tables["allocations.json"] = allocations
		tables["windows.json"] = stats
		tables["failures.json"] = failures

		if run.Kind == reports.KindBacktest {
			records, err := s.runs.GetBacktest(run.ID)
			if err != nil {
				return nil, err
			}
			tables["backtest.json"] = records
		}
	case reports.KindSimulation:
		equity, err := s.runs.GetEquity(run.ID)
		if err != nil {
			return nil, err
		}
		tables["equity.json"] = equity
	}
	return tables, nil
}

// ListExports lists uploaded archives, newest first.
func (s *Service) ListExports(ctx context.Context) ([]ExportInfo, error) {
	objects, err := s.store.List(ctx, s.prefix+archivePrefix)
	if err != nil {
		return nil, err
	}

	exports := make([]ExportInfo, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}
		info, ok := parseKey(strings.TrimPrefix(*obj.Key, s.prefix))
		if !ok {
			s.log.Warn().Str("key", *obj.Key).Msg("Skipping unrecognized object")
			continue
		}
		info.Key = *obj.Key
		if obj.Size != nil {
			info.SizeBytes = *obj.Size
		}
		exports = append(exports, info)
	}

	sort.Slice(exports, func(i, j int) bool {
		return exports[i].Timestamp.After(exports[j].Timestamp)
	})
	return exports, nil
}

// parseKey splits portfoliolab-run-<run id>-<timestamp>.tar.gz.
func parseKey(name string) (ExportInfo, bool) {
	if !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveSuffix) {
		return ExportInfo{}, false
	}
	body := strings.TrimSuffix(strings.TrimPrefix(name, archivePrefix), archiveSuffix)
	if len(body) <= len(timestampFmt)+1 {
		return ExportInfo{}, false
	}
	split := len(body) - len(timestampFmt)
	ts, err := time.Parse(timestampFmt, body[split:])
	if err != nil || body[split-1] != '-' {
		return ExportInfo{}, false
	}
	return ExportInfo{RunID: body[:split-1], Timestamp: ts}, true
}

func addFile(tw *tar.Writer, name string, data []byte, modTime time.Time) error {
	header := &tar.Header{
		Name:    name,
		Size:    int64(len(data)),
		Mode:    0644,
		ModTime: modTime,
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", name, err)
	}
	return nil
}

func checksum(data []byte) string {
	return fmt.Sprintf("sha256:%x", sha256.Sum256(data))
}
