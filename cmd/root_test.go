package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thor/internal/dummy"
	"thor/internal/runner"
)

func TestMain(m *testing.M) {
	if runner.IsWorkerProcess() {
		if err := runner.ServeWorker(context.Background(), os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	// Keep a developer's ~/.thor.yaml out of the way.
	t.Setenv("HOME", t.TempDir())

	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// countingTarget serves the dummy handler and counts the requests it gets.
func countingTarget(t *testing.T) (*httptest.Server, *int64) {
	t.Helper()
	var hits int64
	h := dummy.NewHandler()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestNoArguments(t *testing.T) {
	code, stdout, stderr := execute(t)
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Usage: thor [-p PROCESSES -r REQUESTS -v] URL")
}

func TestHelp(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "alone", args: []string{"-h"}},
		{name: "long", args: []string{"--help"}},
		{name: "with url", args: []string{"-h", "http://example.test"}},
		{name: "after flags", args: []string{"-p", "2", "-v", "-h", "http://example.test"}},
		{name: "after bad value", args: []string{"-p", "abc", "-h"}},
		{name: "after unknown flag", args: []string{"-x", "-h", "http://example.test"}},
		{name: "after bad clustered value", args: []string{"-vp", "abc", "-h"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := execute(t, tt.args...)
			assert.Equal(t, 0, code)
			assert.Contains(t, stdout, "Usage: thor")
			assert.Contains(t, stdout, "-p  PROCESSES")
			assert.NotContains(t, stdout, "Process:")
			assert.Empty(t, stderr)
		})
	}
}

func TestUnknownFlag(t *testing.T) {
	srv, hits := countingTarget(t)

	for _, flag := range []string{"-x", "--bogus", "-vq"} {
		t.Run(flag, func(t *testing.T) {
			code, stdout, stderr := execute(t, flag, srv.URL)
			assert.Equal(t, 1, code)
			assert.Empty(t, stdout)
			assert.Contains(t, stderr, "Usage: thor")
		})
	}
	assert.Zero(t, atomic.LoadInt64(hits))
}

func TestMissingURL(t *testing.T) {
	code, stdout, stderr := execute(t, "-p", "2", "-v")
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Usage: thor")
}

func TestBadValueIsFatal(t *testing.T) {
	srv, hits := countingTarget(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "processes", args: []string{"-p", "abc", srv.URL}},
		{name: "requests", args: []string{"-r", "1.5", srv.URL}},
		{name: "missing value", args: []string{"-r"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := execute(t, tt.args...)
			assert.Equal(t, 1, code)
			assert.Empty(t, stdout)
			assert.NotContains(t, stderr, "Usage:")
			assert.True(t, strings.HasPrefix(stderr, "thor: "), stderr)
		})
	}
	assert.Zero(t, atomic.LoadInt64(hits))
}

func TestSingleProcess(t *testing.T) {
	srv, hits := countingTarget(t)

	code, stdout, stderr := execute(t, "-r", "3", srv.URL)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, int64(3), atomic.LoadInt64(hits))

	assert.Equal(t, 3, strings.Count(stdout, "Process: 0, Request: "))
	assert.Equal(t, 1, strings.Count(stdout, "Process: 0, AVERAGE:  , Elapsed Time: "))
	assert.Equal(t, 1, strings.Count(stdout, "TOTAL AVERAGE ELAPSED TIME: "))
}

func TestDefaults(t *testing.T) {
	srv, hits := countingTarget(t)

	code, stdout, stderr := execute(t, srv.URL)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, int64(1), atomic.LoadInt64(hits))
	assert.Equal(t, 3, strings.Count(stdout, "\n"))
	assert.NotContains(t, stdout, "Hello, thor!")
}

func TestVerbose(t *testing.T) {
	srv, _ := countingTarget(t)

	code, stdout, stderr := execute(t, "-v", "-r", "2", srv.URL)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, 2, strings.Count(stdout, "Hello, thor!\n"))
}

func TestMultiProcess(t *testing.T) {
	srv, _ := countingTarget(t)

	for _, isolation := range []string{"process", "goroutine"} {
		t.Run(isolation, func(t *testing.T) {
			t.Setenv("THOR_ISOLATION", isolation)

			code, stdout, stderr := execute(t, "-p", "3", "-r", "2", srv.URL)
			require.Equal(t, 0, code, stderr)

			for id := 0; id < 3; id++ {
				for i := 0; i < 2; i++ {
					assert.Contains(t, stdout, fmt.Sprintf("Process: %d, Request: %d, Elapsed Time: ", id, i))
				}
				assert.Equal(t, 1, strings.Count(stdout, fmt.Sprintf("Process: %d, AVERAGE:  , Elapsed Time: ", id)))
			}
			assert.Equal(t, 6, strings.Count(stdout, ", Request: "))
			assert.Equal(t, 1, strings.Count(stdout, "TOTAL AVERAGE ELAPSED TIME: "))
			assert.NotContains(t, stdout, "Elapsed Time: -")
		})
	}
}

func TestNetworkErrorIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	code, stdout, stderr := execute(t, "-r", "2", url)
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "worker 0 request 0")
}

func TestZeroRequestsIsFatal(t *testing.T) {
	srv, hits := countingTarget(t)

	code, stdout, stderr := execute(t, "-r", "0", srv.URL)
	assert.Equal(t, 1, code)
	assert.NotContains(t, stdout, "TOTAL")
	assert.Contains(t, stderr, "division by zero")
	assert.Zero(t, atomic.LoadInt64(hits))
}

func TestEnvironmentDefaults(t *testing.T) {
	srv, hits := countingTarget(t)
	t.Setenv("THOR_REQUESTS", "2")

	code, _, stderr := execute(t, srv.URL)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, int64(2), atomic.LoadInt64(hits))

	// Flags win over the environment.
	code, _, stderr = execute(t, "-r", "1", srv.URL)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, int64(3), atomic.LoadInt64(hits))
}

func TestConfigFile(t *testing.T) {
	srv, hits := countingTarget(t)

	path := filepath.Join(t.TempDir(), "thor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("requests: 2\nisolation: goroutine\n"), 0644))

	code, stdout, stderr := execute(t, "--config", path, "-p", "2", srv.URL)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, int64(4), atomic.LoadInt64(hits))
	assert.Equal(t, 1, strings.Count(stdout, "TOTAL AVERAGE ELAPSED TIME: "))
}

func TestMissingConfigFile(t *testing.T) {
	code, stdout, stderr := execute(t, "--config", "/nonexistent/thor.yaml", "http://example.test")
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "read config")
}

func TestHelpRequested(t *testing.T) {
	tests := []struct {
		args []string
		want bool
	}{
		{args: nil, want: false},
		{args: []string{"-h"}, want: true},
		{args: []string{"-p", "-h"}, want: false},
		{args: []string{"-v", "--help"}, want: true},
		{args: []string{"http://x", "-h"}, want: false},
		{args: []string{"-", "-h"}, want: false},
		{args: []string{"-vp", "abc", "-h"}, want: true},
		{args: []string{"-vr", "-h"}, want: false},
		{args: []string{"-p3", "-h"}, want: true},
		{args: []string{"-vpr", "-h"}, want: true},
		{args: []string{"--processes=2", "-h"}, want: true},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			assert.Equal(t, tt.want, helpRequested(tt.args))
		})
	}
}

func TestBadSettingIsFatal(t *testing.T) {
	srv, hits := countingTarget(t)

	tests := []struct {
		name   string
		env    map[string]string
		config string
		want   string
	}{
		{name: "processes env", env: map[string]string{"THOR_PROCESSES": "abc"}, want: "invalid processes"},
		{name: "requests env", env: map[string]string{"THOR_REQUESTS": "two"}, want: "invalid requests"},
		{name: "verbose env", env: map[string]string{"THOR_VERBOSE": "maybe"}, want: "invalid verbose"},
		{name: "processes config", config: "processes: abc\n", want: "invalid processes"},
		{name: "requests config", config: "requests: two\n", want: "invalid requests"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, val := range tt.env {
				t.Setenv(k, val)
			}
			args := []string{"-r", "2", srv.URL}
			if tt.config != "" {
				path := filepath.Join(t.TempDir(), "thor.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.config), 0644))
				args = []string{"--config", path, srv.URL}
			}

			code, stdout, stderr := execute(t, args...)
			assert.Equal(t, 1, code)
			assert.Empty(t, stdout)
			assert.Contains(t, stderr, "thor: "+tt.want)
		})
	}
	assert.Zero(t, atomic.LoadInt64(hits))
}
