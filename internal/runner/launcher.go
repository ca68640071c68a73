package runner

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"thor/internal/logging"
)

// GoroutineLauncher runs every worker in its own goroutine. Each worker gets
// its own Runner and HTTP client; only the output writer is shared.
type GoroutineLauncher struct {
	Out io.Writer
	Log *logrus.Entry
}

func (l *GoroutineLauncher) Launch(ctx context.Context, cfg Config, n int) ([]WorkerResult, error) {
	log := l.Log
	if log == nil {
		log = logrus.NewEntry(logging.Log)
	}
	out := &syncWriter{w: l.Out}
	results := make([]WorkerResult, n)

	g, ctx := errgroup.WithContext(ctx)
	for id := 0; id < n; id++ {
		g.Go(func() error {
			res, err := NewRunner(cfg, out, log).Do(ctx, id)
			if err != nil {
				return err
			}
			results[id] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// syncWriter serialises writes so lines from concurrent workers never tear.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
