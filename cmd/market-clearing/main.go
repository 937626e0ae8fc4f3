package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/cloudx-io/openclearing/core"
	"github.com/cloudx-io/openclearing/marketapi"
	"github.com/cloudx-io/openclearing/marketapi/parsing"
	"github.com/cloudx-io/openclearing/render"
)

// Exit codes
const (
	exitConverged = 0
	exitFailed    = 1
	exitUsage     = 2
)

var (
	plotFlag = cli.BoolFlag{
		Name:  "plot",
		Usage: "write a Graphviz drawing of the cleared market",
	}
	plotFileFlag = cli.StringFlag{
		Name:  "plot-file",
		Usage: "target file for --plot",
		Value: "market.dot",
	}
	interactiveFlag = cli.BoolFlag{
		Name:    "interactive",
		Aliases: []string{"i"},
		Usage:   "print prices, demand and matching for every round",
	}
	maxRoundsFlag = cli.IntFlag{
		Name:  "max-rounds",
		Usage: "stop after this many rounds (0 uses a bound derived from the valuations)",
	}
	formatFlag = cli.StringFlag{
		Name:  "format",
		Usage: "output format: text or json",
		Value: "text",
	}
)

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdout, os.Stderr))
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "market-clearing",
		Usage:     "Find market-clearing prices and an assignment for a bipartite market",
		ArgsUsage: "<market.gml|market.json>",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&plotFlag,
			&plotFileFlag,
			&interactiveFlag,
			&maxRoundsFlag,
			&formatFlag,
		},
		Action: clearMarket,
		// Exit codes are chosen by run, never by the library.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	err := newApp(stdout, stderr).RunContext(ctx, args)
	if err == nil {
		return exitConverged
	}

	fmt.Fprintln(stderr, "Error:", err)
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return exitUsage
}

// report is the --format json document.
type report struct {
	File    string                     `json:"file"`
	State   string                     `json:"state"`
	Outcome *marketapi.ClearingOutcome `json:"outcome,omitempty"`
	Rounds  []marketapi.RoundRecord    `json:"rounds,omitempty"`
	Error   string                     `json:"error,omitempty"`
}

func clearMarket(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return cli.Exit("expected exactly one market file", exitUsage)
	}
	format := c.String(formatFlag.Name)
	if format != "text" && format != "json" {
		return cli.Exit(fmt.Sprintf("unknown format %q", format), exitUsage)
	}
	if c.Int(maxRoundsFlag.Name) < 0 {
		return cli.Exit("--max-rounds must not be negative", exitUsage)
	}
	path := c.Args().First()

	m, err := parsing.LoadMarket(path)
	if err != nil {
		return cli.Exit(err, exitUsage)
	}

	opts := core.Options{
		MaxRounds: c.Int(maxRoundsFlag.Name),
		Logger:    log.New(c.App.ErrWriter, "", log.LstdFlags),
	}
	var records *recordTracer
	if c.Bool(interactiveFlag.Name) {
		if format == "json" {
			records = &recordTracer{}
			opts.Tracer = records
		} else {
			opts.Tracer = newTracePrinter(c.App.Writer, m)
		}
	}

	result, clearErr := core.RunClearing(c.Context, m, opts)

	if c.Bool(plotFlag.Name) {
		if err := writePlot(c.String(plotFileFlag.Name), m, result); err != nil {
			return cli.Exit(err, exitFailed)
		}
		if format == "text" {
			fmt.Fprintf(c.App.Writer, "Wrote %s\n", c.String(plotFileFlag.Name))
		}
	}

	if format == "json" {
		out := report{File: path, State: core.StateConverged.String()}
		if records != nil {
			out.Rounds = records.rounds
		}
		if clearErr != nil {
			out.State = core.StateFailed.String()
			out.Error = clearErr.Error()
		} else {
			outcome := marketapi.NewClearingOutcome(result)
			out.Outcome = &outcome
		}
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return cli.Exit(err, exitFailed)
		}
	} else if clearErr == nil {
		if err := render.WriteSummary(c.App.Writer, m, result); err != nil {
			return cli.Exit(err, exitFailed)
		}
	}

	if clearErr != nil {
		return cli.Exit(fmt.Sprintf("clearing failed: %v", clearErr), exitFailed)
	}
	return nil
}

func writePlot(path string, m *core.Market, result *core.ClearingResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot file: %w", err)
	}
	if err := render.WriteDOT(f, m, result); err != nil {
		f.Close()
		return fmt.Errorf("write plot file: %w", err)
	}
	return f.Close()
}
