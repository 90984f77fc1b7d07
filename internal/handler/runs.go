package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"parkingwatch/internal/config"
	"parkingwatch/internal/dto"
	"parkingwatch/internal/logger"
	"parkingwatch/internal/model"
	"parkingwatch/internal/repository"
	"parkingwatch/internal/service/storage"
)

// ActiveRun reports the id of the run currently being processed.
type ActiveRun interface {
	CurrentRun() string
}

// GetRunsHandler returns the paginated run history, newest first.
func GetRunsHandler(runRepo repository.RunRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 20)

		filter := &model.RunFilter{
			Status: q.Get("status"),
			Limit:  limit,
			Offset: (page - 1) * limit,
		}

		runs, err := runRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying runs from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if runs == nil {
			runs = []model.Run{}
		}

		totalCount, err := runRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting runs: %v", err)
			totalCount = len(runs)
		}

		writeJSON(w, logger, http.StatusOK, dto.RunsData{
			Runs:        runs,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// GetRunIntervalsHandler returns a run together with its stored interval reports.
func GetRunIntervalsHandler(runRepo repository.RunRepository, intervalRepo repository.IntervalRepository,
	logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := r.URL.Query().Get("run")
		if runID == "" {
			http.Error(w, "Run parameter is required", http.StatusBadRequest)
			return
		}

		run, err := runRepo.GetByID(runID)
		if err != nil {
			logger.Error("Error loading run %s: %v", runID, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if run == nil {
			http.NotFound(w, r)
			return
		}

		intervals, err := intervalRepo.GetByRunID(runID)
		if err != nil {
			logger.Error("Error loading intervals of run %s: %v", runID, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if intervals == nil {
			intervals = []model.Interval{}
		}

		writeJSON(w, logger, http.StatusOK, dto.IntervalsData{Run: *run, Intervals: intervals})
	}
}

// ViewIntervalImageHandler serves the saved JPEG of one interval.
func ViewIntervalImageHandler(intervalRepo repository.IntervalRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		runID := q.Get("run")
		ordinal, err := strconv.Atoi(q.Get("interval"))
		if runID == "" || err != nil || ordinal < 1 {
			http.Error(w, "Run and interval parameters are required", http.StatusBadRequest)
			return
		}

		interval, err := intervalRepo.GetByOrdinal(runID, ordinal)
		if err != nil {
			logger.Error("Error loading interval %d of run %s: %v", ordinal, runID, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if interval == nil {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		http.ServeFile(w, r, interval.FilePath)
	}
}

// DeleteRunHandler removes a finished run from the database and its frames from disk.
func DeleteRunHandler(runRepo repository.RunRepository, active ActiveRun, cfg *config.Config,
	logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		runID := r.URL.Query().Get("run")
		if runID == "" {
			http.Error(w, "Run parameter is required", http.StatusBadRequest)
			return
		}
		if active != nil && active.CurrentRun() == runID {
			http.Error(w, "Run is still being processed", http.StatusConflict)
			return
		}

		run, err := runRepo.GetByID(runID)
		if err != nil {
			logger.Error("Error loading run %s: %v", runID, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if run == nil {
			http.NotFound(w, r)
			return
		}

		if err := runRepo.Delete(run.ID); err != nil {
			logger.Error("Failed to delete run %s: %v", run.ID, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if err := storage.RemoveRun(cfg.OutputDirectory, run.ID); err != nil {
			logger.Error("Failed to delete frames of run %s: %v", run.ID, err)
		}

		logger.Info("Deleted run: %s", run.ID)
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "deleted", "run": run.ID})
	}
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
