// Package job tracks synthesis progress per job so clients can poll
// while a long request runs. Two backends exist: in-memory for single
// instances and redis for shared deployments.
package job

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

// StatusComplete is the terminal status every finished job reaches.
const StatusComplete = "Complete"

// ErrNotFound is returned when a job id is unknown or already expired.
var ErrNotFound = errors.New("job not found")

// Record is the progress snapshot of one job. Done and Total count the
// job's primary unit of work; SegmentDone and SegmentTotal expose the
// finer segment granularity inside the current unit.
type Record struct {
	Done         int       `json:"done"`
	Total        int       `json:"total"`
	Status       string    `json:"status"`
	SegmentDone  int       `json:"segment_done"`
	SegmentTotal int       `json:"segment_total"`
	UpdatedAt    time.Time `json:"updated_at"`
	CompletedAt  time.Time `json:"completed_at,omitempty"`
}

// Percentage reports completion as a percentage with one decimal.
// A zero Total reads as zero percent, not a division error.
func (r Record) Percentage() float64 {
	total := r.Total
	if total < 1 {
		total = 1
	}
	return math.Round(1000*float64(r.Done)/float64(total)) / 10
}

// Complete reports whether the job reached its terminal status.
func (r Record) Complete() bool {
	return r.Status == StatusComplete
}

// NewID mints a job identifier.
func NewID() string {
	return uuid.NewString()
}

// Store persists job progress records.
type Store interface {
	// Create registers a new job with its initial record.
	Create(ctx context.Context, id string, rec Record) error

	// Update replaces the record for an existing job.
	Update(ctx context.Context, id string, rec Record) error

	// Get returns the current record, or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}
