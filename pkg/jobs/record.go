// Package jobs persists the batch-job records that track which files a job run
// is working on and how it ended.
package jobs

import (
	"context"
	"errors"
	"strings"
)

// Job states written by the state mover. Completion events may carry other
// terminal states, which are stored verbatim.
const (
	StatusInProcess = "IN-PROCESS"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
)

// ErrNotFound is returned when no record exists for a job id.
var ErrNotFound = errors.New("job record not found")

// Record is one batch-job submission.
type Record struct {
	ID     string
	Files  []string
	Status string
}

// Store reads and writes job records.
type Store interface {
	Create(ctx context.Context, rec Record) error
	// SetStatus updates the status of an existing record and returns
	// ErrNotFound when there is none.
	SetStatus(ctx context.Context, id, status string) error
	Get(ctx context.Context, id string) (Record, error)
}

// JoinFiles encodes a file list the way it is stored in the FILES column.
func JoinFiles(files []string) string {
	return strings.Join(files, ",")
}

// SplitFiles decodes the FILES column, dropping empty entries.
func SplitFiles(s string) []string {
	var files []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	return files
}
