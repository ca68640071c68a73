package main

import (
	"context"
	"fmt"
	"os"

	"thor/cmd"
	"thor/internal/runner"
)

func main() {
	// Worker subprocesses re-enter here; they never parse the command line.
	if runner.IsWorkerProcess() {
		if err := runner.ServeWorker(context.Background(), os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "thor: %v\n", err)
			os.Exit(1)
		}
		return
	}

	os.Exit(cmd.Execute())
}
