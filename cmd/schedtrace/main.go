package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/wippyai/wit-async/loopback"
	"github.com/wippyai/wit-async/stream"
	"github.com/wippyai/wit-async/subtask"
	"github.com/wippyai/wit-async/task"
	"go.uber.org/zap"
	"golang.org/x/term"
)

func main() {
	var (
		name        = flag.String("scenario", "all", "Scenario to run ("+scenarioNames()+", all)")
		maxSteps    = flag.Int("max-steps", 10000, "Host step limit per export")
		verbose     = flag.Bool("v", false, "Debug logging to stderr")
		noColor     = flag.Bool("no-color", false, "Disable colored output")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer l.Sync()
		setLoggers(l)
	}

	selected, err := selectScenarios(*name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Usage: schedtrace [-scenario name] [-v] [-i]")
		os.Exit(1)
	}

	ctx := context.Background()
	results := make([]result, len(selected))
	for i, sc := range selected {
		results[i] = runScenario(ctx, sc, *maxSteps)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	color := !*noColor && term.IsTerminal(int(os.Stdout.Fd()))
	failed := false
	for _, r := range results {
		fmt.Println(r.render(color))
		if r.err != nil {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func setLoggers(l *zap.Logger) {
	task.SetLogger(l.Named("task"))
	subtask.SetLogger(l.Named("subtask"))
	stream.SetLogger(l.Named("stream"))
	loopback.SetLogger(l.Named("loopback"))
}

func selectScenarios(name string) ([]scenario, error) {
	if name == "all" {
		return scenarios, nil
	}
	sc, ok := findScenario(name)
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q", name)
	}
	return []scenario{sc}, nil
}

// runScenario runs sc on a fresh loopback host and scheduler while
// recording both sides.
func runScenario(ctx context.Context, sc scenario, maxSteps int) result {
	rec := &recorder{}
	h := loopback.New(
		loopback.WithMaxSteps(maxSteps),
		loopback.WithTrace(rec.hostEvent),
	)
	s := task.New(h)
	stop := s.Observe(rec)
	defer stop()

	out, err := sc.run(ctx, h, s)
	return result{
		name:      sc.name,
		output:    out,
		err:       err,
		lines:     rec.lines,
		hostStats: h.Stats(),
		taskStats: s.Stats(),
	}
}
