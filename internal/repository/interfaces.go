package repository

import (
	"time"

	"parkingwatch/internal/model"
)

// RunRepository defines the interface for processing run records.
type RunRepository interface {
	// Create operations
	Insert(run *model.Run) error

	// Update operations
	Finish(id, status, errMsg string, framesRead, intervals int, finishedAt time.Time) error
	MarkInterrupted(finishedAt time.Time) (int64, error)

	// Read operations
	GetByID(id string) (*model.Run, error)
	GetAll(filter *model.RunFilter) ([]model.Run, error)
	GetTotalCount(filter *model.RunFilter) (int, error)

	// Delete operations
	Delete(id string) error
}

// IntervalRepository defines the interface for captured interval records.
type IntervalRepository interface {
	// Create operations
	Insert(interval *model.Interval) (int64, error)

	// Read operations
	GetByRunID(runID string) ([]model.Interval, error)
	GetByOrdinal(runID string, ordinal int) (*model.Interval, error)

	// Delete operations
	DeleteByRunID(runID string) error
}
