package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"thor/internal/logging"
)

// Environment handed to worker subprocesses.
const (
	EnvWorkerID     = "THOR_WORKER_ID"
	EnvWorkerConfig = "THOR_WORKER_CONFIG"
	EnvRunID        = "THOR_RUN_ID"
	EnvLogLevel     = "THOR_LOG_LEVEL"
)

// resultFD is the first entry of exec.Cmd.ExtraFiles as seen by the child.
const resultFD = 3

// ProcessLauncher runs every worker in a separate OS process by re-executing
// Executable (the current binary when empty). Children share stdout and
// stderr with the parent and report their WorkerResult as JSON on fd 3.
type ProcessLauncher struct {
	Executable string
	RunID      string
	LogLevel   string
	Out        io.Writer
	ErrOut     io.Writer
	Log        *logrus.Entry
}

func (l *ProcessLauncher) Launch(ctx context.Context, cfg Config, n int) ([]WorkerResult, error) {
	exe := l.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}
	}
	log := l.Log
	if log == nil {
		log = logrus.NewEntry(logging.Log)
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}

	out := &syncWriter{w: l.Out}
	if l.Out == nil {
		out.w = os.Stdout
	}
	errOut := &syncWriter{w: l.ErrOut}
	if l.ErrOut == nil {
		errOut.w = os.Stderr
	}
	results := make([]WorkerResult, n)

	g, ctx := errgroup.WithContext(ctx)
	for id := 0; id < n; id++ {
		g.Go(func() error {
			res, err := l.spawn(ctx, exe, payload, id, out, errOut, log)
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

func (l *ProcessLauncher) spawn(ctx context.Context, exe string, payload []byte, id int,
	out, errOut io.Writer, log *logrus.Entry) (WorkerResult, error) {
	log = log.WithField("worker", id)

	pr, pw, err := os.Pipe()
	if err != nil {
		return WorkerResult{}, fmt.Errorf("worker %d: result pipe: %w", id, err)
	}
	defer pr.Close()

	cmd := exec.CommandContext(ctx, exe)
	cmd.Env = append(os.Environ(),
		EnvWorkerID+"="+strconv.Itoa(id),
		EnvWorkerConfig+"="+string(payload),
		EnvRunID+"="+l.RunID,
		EnvLogLevel+"="+l.LogLevel,
	)
	cmd.Stdout = out
	cmd.Stderr = errOut
	cmd.ExtraFiles = []*os.File{pw}

	if err := cmd.Start(); err != nil {
		pw.Close()
		return WorkerResult{}, fmt.Errorf("worker %d: %w", id, err)
	}
	pw.Close()
	log.WithField("pid", cmd.Process.Pid).Debug("worker process started")

	data, readErr := io.ReadAll(pr)
	if err := cmd.Wait(); err != nil {
		log.WithError(err).Debug("worker process failed")
		return WorkerResult{}, fmt.Errorf("worker %d: %w", id, err)
	}
	if readErr != nil {
		return WorkerResult{}, fmt.Errorf("worker %d: read result: %w", id, readErr)
	}

	var res WorkerResult
	if err := json.Unmarshal(data, &res); err != nil {
		return WorkerResult{}, fmt.Errorf("worker %d: decode result: %w", id, err)
	}
	if res.WorkerID != id {
		return WorkerResult{}, fmt.Errorf("worker %d: result reported id %d", id, res.WorkerID)
	}
	log.Debug("worker process finished")
	return res, nil
}

// IsWorkerProcess reports whether this process was started by a ProcessLauncher.
func IsWorkerProcess() bool {
	_, ok := os.LookupEnv(EnvWorkerID)
	return ok
}

// ServeWorker runs the worker described by the environment, writing its
// output lines to out and its result to fd 3. It is the entry point of a
// worker subprocess and must be called before anything else touches stdout.
func ServeWorker(ctx context.Context, out io.Writer) error {
	id, err := strconv.Atoi(os.Getenv(EnvWorkerID))
	if err != nil {
		return fmt.Errorf("bad %s: %w", EnvWorkerID, err)
	}

	var cfg Config
	if err := json.Unmarshal([]byte(os.Getenv(EnvWorkerConfig)), &cfg); err != nil {
		return fmt.Errorf("bad %s: %w", EnvWorkerConfig, err)
	}

	if err := logging.SetLevel(os.Getenv(EnvLogLevel)); err != nil {
		return err
	}
	log := logging.Log.WithField("run_id", os.Getenv(EnvRunID))

	res, err := NewRunner(cfg, out, log).Do(ctx, id)
	if err != nil {
		return err
	}

	f := os.NewFile(resultFD, "thor-result")
	if f == nil {
		return errors.New("result descriptor not available")
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(res)
}
