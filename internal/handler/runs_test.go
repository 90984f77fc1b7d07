package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"parkingwatch/internal/config"
	"parkingwatch/internal/dto"
	"parkingwatch/internal/logger"
	"parkingwatch/internal/model"
	"parkingwatch/internal/repository/sqlite"
)

type fixedActive string

func (a fixedActive) CurrentRun() string { return string(a) }

type runsFixture struct {
	runs      *sqlite.RunRepository
	intervals *sqlite.IntervalRepository
	cfg       *config.Config
}

func setupRunsFixture(t *testing.T) *runsFixture {
	t.Helper()

	root := t.TempDir()
	db, err := sqlite.New(filepath.Join(root, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return &runsFixture{
		runs:      sqlite.NewRunRepository(db),
		intervals: sqlite.NewIntervalRepository(db),
		cfg:       &config.Config{OutputDirectory: filepath.Join(root, "output")},
	}
}

// addRun stores a finished run with n intervals and writes their frames.
func (f *runsFixture) addRun(t *testing.T, id string, startedAt time.Time, n int) {
	t.Helper()

	dir := filepath.Join(f.cfg.OutputDirectory, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}

	run := &model.Run{ID: id, SourceName: id + ".mp4", TotalSpaces: 100, Status: model.RunStatusFinished,
		Intervals: n, OutputDir: dir, StartedAt: startedAt}
	if err := f.runs.Insert(run); err != nil {
		t.Fatalf("Insert run failed: %v", err)
	}

	for i := 1; i <= n; i++ {
		name := fmt.Sprintf("interval_%d.jpg", i)
		path := filepath.Join(dir, name)
		os.WriteFile(path, []byte("jpeg"), 0644)
		_, err := f.intervals.Insert(&model.Interval{RunID: id, Ordinal: i, Frame: i * 150, Vehicles: 30,
			Available: 70, Filename: name, FilePath: path, FileSize: 4, CreatedAt: startedAt})
		if err != nil {
			t.Fatalf("Insert interval failed: %v", err)
		}
	}
}

func TestGetRunsHandler_Pagination(t *testing.T) {
	f := setupRunsFixture(t)
	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		f.addRun(t, fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Minute), 0)
	}

	w := httptest.NewRecorder()
	GetRunsHandler(f.runs, logger.Discard())(w, httptest.NewRequest(http.MethodGet, "/api/runs?page=2&limit=2", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var data dto.RunsData
	if err := json.NewDecoder(w.Body).Decode(&data); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if data.Length != 5 || data.TotalPages != 3 || data.CurrentPage != 2 || data.Limit != 2 {
		t.Errorf("Unexpected paging %+v", data)
	}
	if len(data.Runs) != 2 || data.Runs[0].ID != "run-2" {
		t.Errorf("Unexpected page content %+v", data.Runs)
	}
}

func TestGetRunsHandler_Empty(t *testing.T) {
	f := setupRunsFixture(t)

	w := httptest.NewRecorder()
	GetRunsHandler(f.runs, logger.Discard())(w, httptest.NewRequest(http.MethodGet, "/api/runs", nil))

	var raw map[string]json.RawMessage
	json.NewDecoder(w.Body).Decode(&raw)
	if string(raw["runs"]) != "[]" {
		t.Errorf("Expected empty array, got %s", raw["runs"])
	}
}

func TestGetRunIntervalsHandler(t *testing.T) {
	f := setupRunsFixture(t)
	f.addRun(t, "run-1", time.Now().UTC(), 3)
	h := GetRunIntervalsHandler(f.runs, f.intervals, logger.Discard())

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/api/runs/intervals?run=run-1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var data dto.IntervalsData
	json.NewDecoder(w.Body).Decode(&data)
	if data.Run.ID != "run-1" || len(data.Intervals) != 3 {
		t.Errorf("Unexpected response %+v", data)
	}

	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/api/runs/intervals?run=missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/api/runs/intervals", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestViewIntervalImageHandler(t *testing.T) {
	f := setupRunsFixture(t)
	f.addRun(t, "run-1", time.Now().UTC(), 2)
	h := ViewIntervalImageHandler(f.intervals, logger.Discard())

	tests := []struct {
		query    string
		expected int
	}{
		{"run=run-1&interval=2", http.StatusOK},
		{"run=run-1&interval=3", http.StatusNotFound},
		{"run=run-1&interval=0", http.StatusBadRequest},
		{"run=run-1", http.StatusBadRequest},
		{"interval=1", http.StatusBadRequest},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/api/runs/image?"+tt.query, nil))
		if w.Code != tt.expected {
			t.Errorf("%s: expected %d, got %d", tt.query, tt.expected, w.Code)
		}
		if tt.expected == http.StatusOK && w.Body.String() != "jpeg" {
			t.Errorf("%s: unexpected body %q", tt.query, w.Body.String())
		}
	}
}

func TestDeleteRunHandler(t *testing.T) {
	f := setupRunsFixture(t)
	f.addRun(t, "run-1", time.Now().UTC(), 1)
	f.addRun(t, "run-2", time.Now().UTC(), 1)
	h := DeleteRunHandler(f.runs, fixedActive("run-2"), f.cfg, logger.Discard())

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/api/runs/delete?run=run-1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if run, _ := f.runs.GetByID("run-1"); run != nil {
		t.Error("Run should be deleted from the database")
	}
	if _, err := os.Stat(filepath.Join(f.cfg.OutputDirectory, "run-1")); !os.IsNotExist(err) {
		t.Error("Run frames should be deleted from disk")
	}

	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/api/runs/delete?run=run-2", nil))
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for the active run, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/api/runs/delete?run=../../etc", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown run, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/api/runs/delete?run=run-2", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", w.Code)
	}
}

func TestAtoiDefault(t *testing.T) {
	tests := []struct {
		input    string
		def      int
		expected int
	}{
		{"10", 5, 10},
		{"1", 0, 1},
		{"", 5, 5},
		{"abc", 10, 10},
		{"-1", 5, 5},
		{"0", 5, 5},
		{"12.5", 5, 5},
	}

	for _, tt := range tests {
		result := atoiDefault(tt.input, tt.def)
		if result != tt.expected {
			t.Errorf("atoiDefault(%q, %d) = %d, expected %d", tt.input, tt.def, result, tt.expected)
		}
	}
}
