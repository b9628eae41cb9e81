// Command chunkscribe transcribes long audio and video files by splitting
// them into chunks the transcription service accepts and merging the
// per-chunk captions back into one SRT or VTT document.
//
//	chunkscribe run [-format vtt|srt] [-asset id] [-config path] <media>
//	chunkscribe enqueue [-format vtt|srt] [-asset id] [-config path] <media>
//	chunkscribe worker [-config path]
//	chunkscribe runs [-limit n] [-id run] [-config path]
//	chunkscribe version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var errUsage = errors.New("usage")

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string, stdout, stderr io.Writer) error
}

func commands() []command {
	return []command{
		{"run", "transcribe a media file now", runCommand},
		{"enqueue", "queue a media file for a worker", enqueueCommand},
		{"worker", "process queued runs until interrupted", workerCommand},
		{"runs", "list recent runs from the ledger", runsCommand},
		{"version", "print build information", versionCommand},
	}
}

func main() {
	os.Exit(dispatch(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func dispatch(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		usage(stderr)
		if len(args) == 0 {
			return exitUsage
		}
		return exitOK
	}
	for _, c := range commands() {
		if c.name != args[0] {
			continue
		}
		err := c.run(ctx, args[1:], stdout, stderr)
		switch {
		case err == nil:
			return exitOK
		case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
			return exitUsage
		default:
			fmt.Fprintf(stderr, "chunkscribe %s: %v\n", c.name, err)
			return exitFailure
		}
	}
	fmt.Fprintf(stderr, "chunkscribe: unknown command %q\n\n", args[0])
	usage(stderr)
	return exitUsage
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: chunkscribe <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands() {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run \"chunkscribe <command> -h\" for a command's flags.")
}

// newFlagSet creates a flag set that reports errors instead of exiting.
func newFlagSet(name, args string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: chunkscribe %s [flags] %s\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}
