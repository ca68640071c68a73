package runner

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"thor/internal/logging"
	"thor/internal/stats"
)

// Driver runs a whole load test: inline when a single process is configured,
// through Launcher otherwise.
type Driver struct {
	Cfg      Config
	Launcher Launcher
	Out      io.Writer
	Log      *logrus.Entry
}

// Run executes the test, prints the total line and returns the total average.
func (d *Driver) Run(ctx context.Context) (float64, error) {
	log := d.Log
	if log == nil {
		log = logrus.NewEntry(logging.Log)
	}

	var average float64
	if d.Cfg.Processes > 1 {
		if d.Launcher == nil {
			return 0, fmt.Errorf("no launcher configured for %d processes", d.Cfg.Processes)
		}

		results, err := d.Launcher.Launch(ctx, d.Cfg, d.Cfg.Processes)
		if err != nil {
			return 0, err
		}

		var acc stats.Stats
		for _, res := range results {
			acc.Add(res.Average)
		}
		average, err = acc.Average(d.Cfg.Processes)
		if err != nil {
			return 0, err
		}
		log.WithField("workers", len(results)).Debug("all workers finished")
	} else {
		res, err := NewRunner(d.Cfg, d.Out, log).Do(ctx, 0)
		if err != nil {
			return 0, err
		}
		average = res.Average
	}

	fmt.Fprintf(d.Out, "TOTAL AVERAGE ELAPSED TIME: %s\n", stats.FormatSeconds(average))
	return average, nil
}
