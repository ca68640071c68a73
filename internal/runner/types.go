package runner

import (
	"context"
)

// Config is the immutable run configuration. It is built once from the
// command line and handed by value to the driver and to every worker.
type Config struct {
	URL       string `json:"url"`
	Processes int    `json:"processes"`
	Requests  int    `json:"requests"`
	Verbose   bool   `json:"verbose"`
}

// WorkerResult is what a worker hands back to the driver once it is done.
type WorkerResult struct {
	WorkerID int     `json:"worker_id"`
	Average  float64 `json:"average"` // seconds
}

// Launcher starts n independent workers with ids 0..n-1, waits for all of
// them, and returns their results ordered by id. The first failing worker
// fails the whole launch.
type Launcher interface {
	Launch(ctx context.Context, cfg Config, n int) ([]WorkerResult, error)
}
