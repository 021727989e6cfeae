package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"safetyvision/internal/config"
	"safetyvision/internal/detect"
	"safetyvision/internal/dto"
	"safetyvision/internal/logger"
	"safetyvision/internal/model"
	"safetyvision/internal/render"
	"safetyvision/internal/repository/sqlite"
	"safetyvision/internal/service/storage"
	"safetyvision/internal/service/websocket"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDetector struct {
	cands []detect.Candidate
	err   error
}

func (s *stubDetector) Detect(image.Image) ([]detect.Candidate, error) { return s.cands, s.err }
func (s *stubDetector) Close() error                                  { return nil }

type fixture struct {
	manager *Manager
	cfg     *config.Config
	runs    *sqlite.RunRepository
	dets    *sqlite.DetectionRepository
	hub     *websocket.HubService
}

func newFixture(t *testing.T, detectors ...detect.Detector) *fixture {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		UploadDirectory: filepath.Join(root, "data_collection"),
		OutputDirectory: filepath.Join(root, "output"),
		LogDirectory:    filepath.Join(root, "logs"),
	}
	l := logger.NewLogger(cfg)
	t.Cleanup(func() { l.Close() })

	labels := []string{"FireExtinguisher", "ToolBox", "OxygenTank"}
	entries := make([]detect.Entry, len(detectors))
	for i, d := range detectors {
		entries[i] = detect.Entry{ClassID: i, Label: labels[i], Detector: d}
	}
	reg, err := detect.NewRegistry(entries...)
	require.NoError(t, err)

	db, err := sqlite.New(filepath.Join(root, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		cfg:  cfg,
		runs: sqlite.NewRunRepository(db),
		dets: sqlite.NewDetectionRepository(db),
		hub:  websocket.NewHubService(l),
	}
	f.manager = NewManager(detect.NewEnsemble(reg, detect.DefaultOptions()), render.Drawer{},
		storage.NewStorageService(cfg, l), f.hub, f.runs, f.dets, l)
	f.manager.now = func() time.Time { return time.Date(2025, 5, 4, 3, 2, 1, 0, time.UTC) }
	return f
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestProcessUpload_RecordsRun(t *testing.T) {
	fire := &stubDetector{cands: []detect.Candidate{{Box: detect.Box{X1: 2, Y1: 2, X2: 20, Y2: 20}, Confidence: 0.9}}}
	tool := &stubDetector{cands: []detect.Candidate{
		{Box: detect.Box{X1: 30, Y1: 30, X2: 40, Y2: 40}, Confidence: 0.7},
		{Box: detect.Box{X1: 0, Y1: 0, X2: 5, Y2: 5}, Confidence: 0.3},
	}}
	f := newFixture(t, fire, tool)

	res, err := f.manager.ProcessUpload(context.Background(), "site photo.png", pngBytes(t, 64, 64))
	require.NoError(t, err)

	require.Len(t, res.Detections, 2)
	assert.Equal(t, 1, res.Summary.ClassCounts["FireExtinguisher"])
	assert.Equal(t, 1, res.Summary.ClassCounts["ToolBox"])
	assert.Equal(t, "site_photo.png", res.Run.Filename)
	assert.Equal(t, "ensemble_20250504_030201.000_site_photo.png", filepath.Base(res.Run.OutputPath))
	assert.FileExists(t, res.Run.UploadPath)
	assert.FileExists(t, res.Run.OutputPath)

	_, format, err := image.Decode(bytes.NewReader(res.Annotated))
	require.NoError(t, err)
	assert.Equal(t, "png", format)

	stored, err := f.runs.GetByID(res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.DetectionCount)
	assert.Len(t, stored.UID, 36)

	rows, err := f.dets.GetByRunID(res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, "FireExtinguisher", rows[0].Label)
	assert.Equal(t, 20.0, rows[0].X2)
}

func TestProcessUpload_BroadcastsLiveEvent(t *testing.T) {
	f := newFixture(t, &stubDetector{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.hub.Run(ctx)

	upgrader := gws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.hub.Register(conn)
	}))
	defer srv.Close()

	client, _, err := gws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()
	require.Eventually(t, func() bool { return f.hub.GetClientCount() == 1 }, time.Second, 10*time.Millisecond)

	res, err := f.manager.ProcessUpload(ctx, "a.png", pngBytes(t, 8, 8))
	require.NoError(t, err)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := client.ReadMessage()
	require.NoError(t, err)

	var ev dto.LiveEvent
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, res.Run.ID, ev.ID)
	assert.Equal(t, filepath.Base(res.Run.OutputPath), ev.Output)
	assert.Equal(t, 0, ev.Detections)
}

func TestProcessUpload_RejectsNonImage(t *testing.T) {
	f := newFixture(t, &stubDetector{})

	_, err := f.manager.ProcessUpload(context.Background(), "notes.txt", []byte("hello world"))
	assert.ErrorIs(t, err, render.ErrUnsupportedImage)

	// PNG signature followed by garbage
	broken := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	_, err = f.manager.ProcessUpload(context.Background(), "broken.png", broken)
	assert.ErrorIs(t, err, render.ErrUnsupportedImage)

	count, _ := f.runs.GetTotalCount(nil)
	assert.Zero(t, count)
}

func TestProcessUpload_DetectorErrorStoresNothing(t *testing.T) {
	boom := errors.New("boom")
	f := newFixture(t, &stubDetector{err: boom})

	_, err := f.manager.ProcessUpload(context.Background(), "a.png", pngBytes(t, 8, 8))
	assert.ErrorIs(t, err, boom)

	_, statErr := os.Stat(f.cfg.OutputDirectory)
	assert.True(t, os.IsNotExist(statErr))
}

type failingDetections struct {
	*sqlite.DetectionRepository
	err error
}

func (f failingDetections) InsertBatch(int64, []model.Detection) error { return f.err }

func TestProcessUpload_FailedRecordLeavesNothing(t *testing.T) {
	f := newFixture(t, &stubDetector{cands: []detect.Candidate{{Box: detect.Box{X1: 1, Y1: 1, X2: 6, Y2: 6}, Confidence: 0.9}}})
	diskFull := errors.New("disk full")
	f.manager.detectionRepo = failingDetections{DetectionRepository: f.dets, err: diskFull}

	_, err := f.manager.ProcessUpload(context.Background(), "a.png", pngBytes(t, 8, 8))
	assert.ErrorIs(t, err, diskFull)

	count, _ := f.runs.GetTotalCount(nil)
	assert.Zero(t, count)
	for _, dir := range []string{f.cfg.UploadDirectory, f.cfg.OutputDirectory} {
		files, _ := os.ReadDir(dir)
		assert.Empty(t, files, dir)
	}
}

func TestDeleteAndClearRuns(t *testing.T) {
	f := newFixture(t, &stubDetector{})
	ctx := context.Background()

	first, err := f.manager.ProcessUpload(ctx, "a.png", pngBytes(t, 8, 8))
	require.NoError(t, err)
	f.manager.now = func() time.Time { return time.Date(2025, 5, 4, 3, 2, 2, 0, time.UTC) }
	second, err := f.manager.ProcessUpload(ctx, "b.png", pngBytes(t, 8, 8))
	require.NoError(t, err)

	require.NoError(t, f.manager.DeleteRun(first.Run.ID))
	assert.NoFileExists(t, first.Run.OutputPath)
	assert.FileExists(t, second.Run.OutputPath)
	assert.ErrorIs(t, f.manager.DeleteRun(first.Run.ID), sqlite.ErrNotFound)

	require.NoError(t, f.manager.ClearRuns())
	assert.NoFileExists(t, second.Run.OutputPath)
	count, _ := f.runs.GetTotalCount(nil)
	assert.Zero(t, count)
}

func TestAnnotateDirectory(t *testing.T) {
	f := newFixture(t, &stubDetector{cands: []detect.Candidate{{Box: detect.Box{X1: 1, Y1: 1, X2: 6, Y2: 6}, Confidence: 0.8}}})
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "annotated")

	require.NoError(t, os.WriteFile(filepath.Join(in, "img2.png"), pngBytes(t, 10, 10), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "img10.PNG"), pngBytes(t, 10, 10), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "bad.jpg"), []byte("not a jpeg"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.txt"), []byte("skip"), 0644))

	n, err := f.manager.AnnotateDirectory(context.Background(), in, out)
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.FileExists(t, filepath.Join(out, "img2.png"))
	assert.FileExists(t, filepath.Join(out, "img10.png"))
}

func TestToModel(t *testing.T) {
	rows := ToModel([]detect.Detection{{ClassID: 2, Label: "OxygenTank", Confidence: 0.55, Box: detect.Box{X1: 1, Y1: 2, X2: 3, Y2: 4}}})

	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].ClassID)
	assert.Equal(t, [4]float64{1, 2, 3, 4}, [4]float64{rows[0].X1, rows[0].Y1, rows[0].X2, rows[0].Y2})
}
