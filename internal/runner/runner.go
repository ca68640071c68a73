package runner

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"thor/internal/logging"
	"thor/internal/stats"
)

// Runner executes the sequential request loop of a single worker.
type Runner struct {
	Cfg    Config
	Client *http.Client
	Out    io.Writer
	Log    *logrus.Entry
}

func NewRunner(cfg Config, out io.Writer, log *logrus.Entry) *Runner {
	if log == nil {
		log = logrus.NewEntry(logging.Log)
	}
	return &Runner{
		Cfg:    cfg,
		Client: newClient(),
		Out:    out,
		Log:    log,
	}
}

// newClient returns a client that opens a fresh connection for every request
// and never gives up on a slow server.
func newClient() *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DisableKeepAlives = true

	return &http.Client{
		Transport: t,
	}
}

// Do performs Cfg.Requests GETs one after another and returns the average of
// the elapsed times. Elapsed is measured from the worker start, not from the
// previous request, so samples grow with every request.
func (r *Runner) Do(ctx context.Context, workerID int) (WorkerResult, error) {
	log := r.Log.WithField("worker", workerID)
	log.Debugf("starting %d requests against %s", r.Cfg.Requests, r.Cfg.URL)

	var acc stats.Stats
	start := time.Now()

	for i := 0; i < r.Cfg.Requests; i++ {
		body, err := r.get(ctx)
		if err != nil {
			log.WithError(err).Errorf("request %d failed", i)
			return WorkerResult{}, fmt.Errorf("worker %d request %d: %w", workerID, i, err)
		}

		elapsed := stats.Round2(time.Since(start).Seconds())
		acc.Add(elapsed)

		if r.Cfg.Verbose {
			fmt.Fprintln(r.Out, string(body))
		}
		fmt.Fprintf(r.Out, "Process: %d, Request: %d, Elapsed Time: %s\n",
			workerID, i, stats.FormatSeconds(elapsed))
	}

	average, err := acc.Average(r.Cfg.Requests)
	if err != nil {
		return WorkerResult{}, fmt.Errorf("worker %d average: %w", workerID, err)
	}
	fmt.Fprintf(r.Out, "Process: %d, AVERAGE:  , Elapsed Time: %s\n",
		workerID, stats.FormatSeconds(average))

	return WorkerResult{WorkerID: workerID, Average: average}, nil
}

// get issues one GET and reads the whole body before returning.
func (r *Runner) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.Cfg.URL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}
