package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"parkingwatch/internal/model"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "data", "test.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func newRun(id string, startedAt time.Time) *model.Run {
	return &model.Run{
		ID:                 id,
		SourceName:         "lot.mp4",
		TotalSpaces:        100,
		FPS:                30,
		PredictionInterval: 150,
		CaptureInterval:    150,
		Status:             model.RunStatusRunning,
		OutputDir:          filepath.Join("/output", id),
		StartedAt:          startedAt,
	}
}

func TestDatabase_CreatesFileAndMigrates(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "parkingwatch.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist")
	}

	version, err := db.Version()
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if version != 2 {
		t.Errorf("Expected schema version 2, got %d", version)
	}

	// Running migrations again is a no-op.
	if err := db.Migrate(); err != nil {
		t.Errorf("Second migrate failed: %v", err)
	}
}

func TestDatabase_Rollback(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Rollback(); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	version, err := db.Version()
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if version != 1 {
		t.Errorf("Expected version 1 after rollback, got %d", version)
	}

	if _, err := NewIntervalRepository(db).GetByRunID("x"); err == nil {
		t.Error("Intervals table should be gone after rollback")
	}
}

func TestRunRepository_InsertAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRunRepository(db)

	started := time.Now().UTC().Truncate(time.Second)
	run := newRun("run-1", started)
	if err := repo.Insert(run); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := repo.GetByID("run-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected run, got nil")
	}
	if got.SourceName != "lot.mp4" || got.TotalSpaces != 100 || got.CaptureInterval != 150 {
		t.Errorf("Unexpected run %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("Expected start %v, got %v", started, got.StartedAt)
	}
	if got.FinishedAt != nil {
		t.Error("New run must not have a finish time")
	}

	missing, err := repo.GetByID("nope")
	if err != nil || missing != nil {
		t.Errorf("Expected nil, nil for missing run, got %v, %v", missing, err)
	}
}

func TestRunRepository_Finish(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRunRepository(db)

	if err := repo.Insert(newRun("run-1", time.Now().UTC())); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	finished := time.Now().UTC().Truncate(time.Second)
	if err := repo.Finish("run-1", model.RunStatusFinished, "", 310, 2, finished); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	got, _ := repo.GetByID("run-1")
	if got.Status != model.RunStatusFinished || got.FramesRead != 310 || got.Intervals != 2 {
		t.Errorf("Unexpected finished run %+v", got)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(finished) {
		t.Errorf("Expected finish time %v, got %v", finished, got.FinishedAt)
	}

	if err := repo.Finish("missing", model.RunStatusFailed, "x", 0, 0, finished); err == nil {
		t.Error("Finishing an unknown run should fail")
	}
}

func TestRunRepository_MarkInterrupted(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRunRepository(db)

	now := time.Now().UTC()
	repo.Insert(newRun("running", now))
	done := newRun("done", now)
	done.Status = model.RunStatusFinished
	repo.Insert(done)

	n, err := repo.MarkInterrupted(now)
	if err != nil {
		t.Fatalf("MarkInterrupted failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 interrupted run, got %d", n)
	}

	got, _ := repo.GetByID("running")
	if got.Status != model.RunStatusFailed || got.Error != "interrupted" {
		t.Errorf("Unexpected run after interruption %+v", got)
	}
}

func TestRunRepository_GetAllPaginates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRunRepository(db)

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		if err := repo.Insert(newRun(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	page, err := repo.GetAll(&model.RunFilter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(page))
	}
	if page[0].ID != "run-3" || page[1].ID != "run-2" {
		t.Errorf("Expected newest first with offset, got %s, %s", page[0].ID, page[1].ID)
	}

	count, err := repo.GetTotalCount(&model.RunFilter{})
	if err != nil || count != 5 {
		t.Errorf("Expected 5 runs, got %d (%v)", count, err)
	}

	running, err := repo.GetTotalCount(&model.RunFilter{Status: model.RunStatusFinished})
	if err != nil || running != 0 {
		t.Errorf("Expected 0 finished runs, got %d (%v)", running, err)
	}
}

func TestIntervalRepository_InsertAndQuery(t *testing.T) {
	db := setupTestDB(t)
	runs := NewRunRepository(db)
	intervals := NewIntervalRepository(db)

	runs.Insert(newRun("run-1", time.Now().UTC()))

	for i := 1; i <= 3; i++ {
		_, err := intervals.Insert(&model.Interval{
			RunID:     "run-1",
			Ordinal:   i,
			Frame:     i * 150,
			Vehicles:  30 * i,
			Available: 100 - 30*i,
			Stale:     i == 2,
			Filename:  fmt.Sprintf("interval_%d.jpg", i),
			FilePath:  fmt.Sprintf("/output/run-1/interval_%d.jpg", i),
			FileSize:  1024,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	list, err := intervals.GetByRunID("run-1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("Expected 3 intervals, got %d", len(list))
	}
	for i, iv := range list {
		if iv.Ordinal != i+1 {
			t.Errorf("Expected ordinal %d, got %d", i+1, iv.Ordinal)
		}
	}
	if !list[1].Stale || list[0].Stale {
		t.Error("Stale flag not round-tripped")
	}
	if list[2].Available != 10 {
		t.Errorf("Expected 10 available, got %d", list[2].Available)
	}

	one, err := intervals.GetByOrdinal("run-1", 2)
	if err != nil || one == nil || one.Filename != "interval_2.jpg" {
		t.Errorf("Unexpected interval %+v (%v)", one, err)
	}

	none, err := intervals.GetByOrdinal("run-1", 9)
	if err != nil || none != nil {
		t.Errorf("Expected nil, nil for missing interval, got %v, %v", none, err)
	}
}

func TestIntervalRepository_DuplicateOrdinalRejected(t *testing.T) {
	db := setupTestDB(t)
	intervals := NewIntervalRepository(db)

	iv := &model.Interval{RunID: "run-1", Ordinal: 1, Filename: "interval_1.jpg", FilePath: "x", CreatedAt: time.Now()}
	if _, err := intervals.Insert(iv); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := intervals.Insert(iv); err == nil {
		t.Error("Expected duplicate ordinal to be rejected")
	}
}

func TestRunRepository_DeleteRemovesIntervals(t *testing.T) {
	db := setupTestDB(t)
	runs := NewRunRepository(db)
	intervals := NewIntervalRepository(db)

	runs.Insert(newRun("run-1", time.Now().UTC()))
	intervals.Insert(&model.Interval{RunID: "run-1", Ordinal: 1, Filename: "interval_1.jpg", FilePath: "x", CreatedAt: time.Now()})

	if err := runs.Delete("run-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if got, _ := runs.GetByID("run-1"); got != nil {
		t.Error("Run should be deleted")
	}
	if list, _ := intervals.GetByRunID("run-1"); len(list) != 0 {
		t.Errorf("Intervals should be deleted, found %d", len(list))
	}
}

func TestDatabase_ConcurrentInserts(t *testing.T) {
	db := setupTestDB(t)
	intervals := NewIntervalRepository(db)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(ordinal int) {
			defer wg.Done()
			_, err := intervals.Insert(&model.Interval{
				RunID:     "run-1",
				Ordinal:   ordinal,
				Filename:  fmt.Sprintf("interval_%d.jpg", ordinal),
				FilePath:  "x",
				CreatedAt: time.Now(),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Concurrent insert failed: %v", err)
		}
	}

	list, _ := intervals.GetByRunID("run-1")
	if len(list) != 10 {
		t.Errorf("Expected 10 intervals, got %d", len(list))
	}
}
