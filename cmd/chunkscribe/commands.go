package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kbukum/chunkscribe/jobs"
	"github.com/kbukum/chunkscribe/orchestrator"
	"github.com/kbukum/chunkscribe/runstore"
	"github.com/kbukum/chunkscribe/validation"
	"github.com/kbukum/chunkscribe/version"
)

// mediaFlags are shared by run and enqueue.
type mediaFlags struct {
	config  string
	format  string
	assetID string
	source  string
}

func parseMediaFlags(name string, args []string, stderr io.Writer) (*mediaFlags, error) {
	f := &mediaFlags{}
	fs := newFlagSet(name, "<media>", stderr)
	fs.StringVar(&f.config, "config", "", "config file (default: search cmd/chunkscribe, config/, .)")
	fs.StringVar(&f.format, "format", "", "caption format: vtt or srt (default: pipeline.format)")
	fs.StringVar(&f.assetID, "asset", "", "asset id for artifact keys (default: derived from the file name)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, errUsage
	}
	f.source = fs.Arg(0)
	return f, nil
}

func runCommand(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	f, err := parseMediaFlags("run", args, stderr)
	if err != nil {
		return err
	}
	a, in, err := newApp(f.config, needs{ledger: true, cache: true, events: true})
	if err != nil {
		return err
	}

	progress := func(_ context.Context, run *orchestrator.Run, t orchestrator.Transition) {
		fmt.Fprintf(stderr, "[%s] %s -> %s\n", run.AssetID, t.From, t.To)
	}
	return a.RunTask(ctx, func(ctx context.Context) error {
		orch, err := newOrchestrator(ctx, a, in, progress)
		if err != nil {
			return err
		}
		res, err := orch.Run(ctx, orchestrator.Request{Source: f.source, Format: f.format, AssetID: f.assetID})
		if err != nil {
			return describeFailure(err)
		}
		printResult(stdout, res)
		return nil
	})
}

// describeFailure names the step and chunk a run stopped at.
func describeFailure(err error) error {
	se, ok := orchestrator.AsStepError(err)
	if !ok {
		return err
	}
	where := "step " + string(se.Step)
	if se.HasChunk() {
		where += fmt.Sprintf(", chunk %d", se.ChunkIndex)
	}
	return fmt.Errorf("run %s failed at %s [%s]: %w", se.RunID, where, se.Code(), se.Err)
}

func printResult(w io.Writer, res *orchestrator.Result) {
	t := res.Transcript
	line := func(label, format string, args ...interface{}) {
		fmt.Fprintf(w, "%-11s "+format+"\n", append([]interface{}{label + ":"}, args...)...)
	}
	line("run", "%s", res.RunID)
	line("asset", "%s (%s)", res.Asset.ID, ms(res.Asset.DurationMs))
	line("chunks", "%d", len(res.Chunks))
	line("captions", "%d", len(t.Captions))
	line("transcript", "%s", res.MergedKey)
	if res.MergedURL != "" {
		line("url", "%s", res.MergedURL)
	}
	line("took", "%s", res.Duration.Round(time.Millisecond))
	for _, warn := range t.Warnings {
		line("warning", "%s", warn)
	}
}

func enqueueCommand(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	f, err := parseMediaFlags("enqueue", args, stderr)
	if err != nil {
		return err
	}
	a, _, err := newApp(f.config, needs{})
	if err != nil {
		return err
	}
	return a.RunTask(ctx, func(ctx context.Context) error {
		client, err := jobs.NewClient(a.Cfg.Queue, a.Logger)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		id, err := client.Enqueue(ctx, jobs.Payload{Source: f.source, Format: f.format, AssetID: f.assetID})
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, id)
		return nil
	})
}

func workerCommand(ctx context.Context, args []string, _, stderr io.Writer) error {
	fs := newFlagSet("worker", "", stderr)
	configPath := fs.String("config", "", "config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, in, err := newApp(*configPath, needs{ledger: true, cache: true, events: true})
	if err != nil {
		return err
	}
	return a.RunTask(ctx, func(ctx context.Context) error {
		orch, err := newOrchestrator(ctx, a, in, nil)
		if err != nil {
			return err
		}
		handler := jobs.NewHandler(func(ctx context.Context, p jobs.Payload) error {
			_, err := orch.Run(ctx, orchestrator.Request{Source: p.Source, Format: p.Format, AssetID: p.AssetID})
			return err
		}, a.Logger)
		worker, err := jobs.NewWorker(a.Cfg.Queue, handler, a.Logger)
		if err != nil {
			return err
		}
		return worker.Run(ctx)
	})
}

func runsCommand(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("runs", "", stderr)
	configPath := fs.String("config", "", "config file")
	limit := fs.Int("limit", 20, "number of runs to list")
	runID := fs.String("id", "", "show one run and its chunks")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, in, err := newApp(*configPath, needs{ledger: true})
	if err != nil {
		return err
	}
	if in.db == nil {
		return fmt.Errorf("database.enabled is false; no run ledger to read")
	}
	return a.RunTask(ctx, func(ctx context.Context) error {
		store, err := in.ledger(a.Logger)
		if err != nil {
			return err
		}
		if *runID != "" {
			return showRun(ctx, stdout, store, *runID, *asJSON)
		}
		runs, err := store.List(ctx, *limit)
		if err != nil {
			return err
		}
		if *asJSON {
			return writeJSON(stdout, runs)
		}
		printRuns(stdout, runs)
		return nil
	})
}

func showRun(ctx context.Context, w io.Writer, store *runstore.Store, id string, asJSON bool) error {
	if _, err := validation.ParseUUID("id", id); err != nil {
		return err
	}
	run, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	chunks, err := store.Chunks(ctx, id)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(w, struct {
			Run    *runstore.Run       `json:"run"`
			Chunks []runstore.RunChunk `json:"chunks"`
		}{run, chunks})
	}

	printRuns(w, []runstore.Run{*run})
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHUNK\tSTART\tDURATION\tSTATE\tCAPTIONS\tERROR")
	for _, c := range chunks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", c.Index, ms(c.StartMs), ms(c.DurationMs), c.State, c.CaptionKey, c.Error)
	}
	return tw.Flush()
}

func printRuns(w io.Writer, runs []runstore.Run) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tASSET\tFORMAT\tSTATE\tCHUNKS\tWARNINGS\tCREATED\tDETAIL")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID, r.AssetID, r.Format, r.State, r.Chunks, r.Warnings,
			r.CreatedAt.Local().Format(time.DateTime), runDetail(r))
	}
	_ = tw.Flush()
}

// runDetail is the merged key for finished runs and the failure location
// for failed ones.
func runDetail(r runstore.Run) string {
	if r.State != runstore.StateFailed {
		return r.MergedKey
	}
	var b strings.Builder
	b.WriteString(r.Step)
	if r.ChunkIndex != nil {
		fmt.Fprintf(&b, " chunk %d", *r.ChunkIndex)
	}
	if r.ErrorCode != "" {
		b.WriteString(" " + r.ErrorCode)
	}
	return b.String()
}

func ms(v int64) string {
	return (time.Duration(v) * time.Millisecond).String()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func versionCommand(_ context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("version", "", stderr)
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(stdout, version.Get())
	}
	fmt.Fprintf(stdout, "%s %s\n", version.Name, version.Full())
	return nil
}
