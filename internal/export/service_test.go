package export

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfoliolab/internal/database"
	"github.com/aristath/portfoliolab/internal/modules/reports"
	"github.com/aristath/portfoliolab/internal/modules/simulation"
	testutil "github.com/aristath/portfoliolab/internal/testing"
)

type memoryStore struct {
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (m *memoryStore) Upload(_ context.Context, key string, body io.Reader, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memoryStore) List(_ context.Context, prefix string) ([]types.Object, error) {
	var out []types.Object
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, types.Object{Key: aws.String(k), Size: aws.Int64(int64(len(v)))})
		}
	}
	return out, nil
}

func storeRun(t *testing.T) (*reports.Repository, string) {
	t.Helper()
	db := testutil.NewTestDB(t, database.NameResults)
	repo := reports.NewRepository(db.Conn(), zerolog.Nop())

	dates := []time.Time{testutil.Date(2023, 1, 3), testutil.Date(2023, 1, 4), testutil.Date(2023, 1, 5)}
	result, err := simulation.NewSimulator(simulation.DefaultParams(), zerolog.Nop()).
		Run(dates, []float64{100, 101, 102}, []int{1, 1, 0})
	require.NoError(t, err)
	runID, err := repo.SaveSimulation([]string{"AAA"}, map[string]string{"base": "AAA"}, result)
	require.NoError(t, err)
	return repo, runID
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	files := make(map[string][]byte)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[hdr.Name] = body
	}
	return files
}

func TestExportRun(t *testing.T) {
	repo, runID := storeRun(t)
	store := newMemoryStore()
	svc := NewService(store, repo, "exports", zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }

	key, err := svc.ExportRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, "exports/portfoliolab-run-"+runID+"-2024-05-06-070809.tar.gz", key)

	files := readArchive(t, store.objects[key])
	require.Contains(t, files, "manifest.json")
	require.Contains(t, files, "run.json")
	require.Contains(t, files, "equity.json")
	assert.NotContains(t, files, "allocations.json")

	var manifest Manifest
	require.NoError(t, json.Unmarshal(files["manifest.json"], &manifest))
	assert.Equal(t, runID, manifest.RunID)
	assert.Equal(t, "simulation", manifest.Kind)
	require.Len(t, manifest.Files, 2)
	for _, f := range manifest.Files {
		assert.Equal(t, checksum(files[f.Name]), f.Checksum)
		assert.Equal(t, int64(len(files[f.Name])), f.SizeBytes)
	}

	var equity reports.Equity
	require.NoError(t, json.Unmarshal(files["equity.json"], &equity))
	assert.Len(t, equity.Curves[simulation.CurveLongShort], 3)
}

func TestExportRun_UnknownRun(t *testing.T) {
	repo, _ := storeRun(t)
	_, err := NewService(newMemoryStore(), repo, "", zerolog.Nop()).ExportRun(context.Background(), "missing")
	assert.ErrorIs(t, err, reports.ErrRunNotFound)
}

func TestListExports(t *testing.T) {
	repo, runID := storeRun(t)
	store := newMemoryStore()
	svc := NewService(store, repo, "exports/", zerolog.Nop())

	svc.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	_, err := svc.ExportRun(context.Background(), runID)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) }
	_, err = svc.ExportRun(context.Background(), runID)
	require.NoError(t, err)
	store.objects["exports/portfoliolab-run-garbage.tar.gz"] = []byte("x")

	exports, err := svc.ListExports(context.Background())
	require.NoError(t, err)
	require.Len(t, exports, 2)
	assert.Equal(t, runID, exports[0].RunID)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), exports[0].Timestamp)
	assert.Positive(t, exports[0].SizeBytes)
}

func TestParseKey(t *testing.T) {
	info, ok := parseKey("portfoliolab-run-0b7c-2e1f-2024-05-06-070809.tar.gz")
	require.True(t, ok)
	assert.Equal(t, "0b7c-2e1f", info.RunID)

	_, ok = parseKey("portfoliolab-run-2024-05-06-070809.tar.gz")
	assert.False(t, ok)
	_, ok = parseKey("other.tar.gz")
	assert.False(t, ok)
}

func TestS3Config_Enabled(t *testing.T) {
	assert.False(t, S3Config{}.Enabled())
	assert.True(t, S3Config{Bucket: "runs"}.Enabled())

	_, err := NewS3Client(context.Background(), S3Config{}, zerolog.Nop())
	assert.Error(t, err)
}
