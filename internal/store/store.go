// Package store persists tile run records and flattened point
// statistics to SQLite for QA queries across runs. The store is
// optional; the pipeline only writes to it when configured.
package store

import (
	"context"
	"time"

	"github.com/sells-group/coastline-cli/internal/model"
)

// RunStatus tracks a tile run through the pipeline.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one processing attempt for a study-area tile.
type Run struct {
	ID            string
	StudyArea     string
	RasterVersion string
	VectorVersion string
	Status        RunStatus
	// Points and Segments are output row counts, filled on completion.
	Points   int
	Segments int
	// Error carries the failure message for failed runs.
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status    RunStatus
	StudyArea string
	Limit     int
	Offset    int
}

// Store defines the persistence interface for run tracking.
type Store interface {
	CreateRun(ctx context.Context, studyArea, rasterVersion, vectorVersion string) (*Run, error)
	CompleteRun(ctx context.Context, runID string, points, segments int) error
	FailRun(ctx context.Context, runID string, cause error) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	// SavePoints flattens the rates-of-change points of a completed run.
	SavePoints(ctx context.Context, runID string, pts []*model.ReferencePoint) error

	Migrate(ctx context.Context) error
	Close() error
}
