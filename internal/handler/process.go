package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"parkingwatch/internal/config"
	"parkingwatch/internal/dto"
	"parkingwatch/internal/logger"
	"parkingwatch/internal/model"
	"parkingwatch/internal/service/ingest"
	"parkingwatch/internal/service/processor"
)

const (
	msgNoVideo       = "Error: Please upload a video file."
	msgUnsupported   = "Error: Only .mp4 videos are supported."
	msgInvalidSpaces = "Error: Total parking spaces must be a whole number of at least 1."
	msgBusy          = "Error: Another video is already being processed."
	msgCannotOpen    = "Error: Unable to open video file."
	msgTooLarge      = "Error: The uploaded video is too large."

	multipartMemory = 32 << 20
)

// RunStarter starts processing of an uploaded video.
type RunStarter interface {
	StartUpload(upload io.Reader, name string, totalSpaces int) (*model.Run, error)
}

// ProcessVideoHandler handles POST /api/process. It accepts a multipart form
// with the "video" file and an optional "totalSpaces" field, opens the video
// and answers 202 once processing has started in the background.
func ProcessVideoHandler(starter RunStarter, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if cfg.MaxUploadMB > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadMB<<20)
		}

		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, msgTooLarge, http.StatusRequestEntityTooLarge)
				return
			}
			logger.Warning("Rejected upload: %v", err)
			http.Error(w, msgNoVideo, http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("video")
		if err != nil || header.Filename == "" {
			http.Error(w, msgNoVideo, http.StatusBadRequest)
			return
		}
		defer file.Close()

		if !ingest.IsVideoFile(header.Filename) {
			http.Error(w, msgUnsupported, http.StatusUnsupportedMediaType)
			return
		}

		totalSpaces, ok := parseTotalSpaces(r.FormValue("totalSpaces"), cfg.DefaultTotalSpaces)
		if !ok {
			http.Error(w, msgInvalidSpaces, http.StatusBadRequest)
			return
		}

		run, err := starter.StartUpload(file, header.Filename, totalSpaces)
		if err != nil {
			var openErr *processor.VideoOpenError
			switch {
			case errors.Is(err, processor.ErrRunInProgress):
				http.Error(w, msgBusy, http.StatusConflict)
			case errors.As(err, &openErr):
				logger.Warning("Cannot open %s: %v", header.Filename, err)
				http.Error(w, msgCannotOpen, http.StatusUnprocessableEntity)
			case errors.Is(err, processor.ErrNoVideoProvided):
				http.Error(w, msgNoVideo, http.StatusBadRequest)
			default:
				logger.Error("Failed to start processing %s: %v", header.Filename, err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
			return
		}

		logger.Info("Accepted %s (%d bytes) as run %s", header.Filename, header.Size, run.ID)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		if err := json.NewEncoder(w).Encode(dto.ProcessResponse{RunID: run.ID}); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

// parseTotalSpaces reads the space count. An empty value yields def; anything
// that is not a whole number of at least 1 is rejected.
func parseTotalSpaces(v string, def int) (int, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return def, def >= 1
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
