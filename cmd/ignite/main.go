// ignite runs a compiled oxido artifact.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	quantum := flag.Int("quantum", 0, "Instructions per scheduler turn (default: oxido.toml [run] quantum, else 100)")
	trace := flag.String("trace", "", "Write the scheduler trace as CBOR to this file")
	debug := flag.Bool("d", false, "Print every executed instruction to stderr")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ignite [options] file.oxbc\n\n")
		fmt.Fprintf(os.Stderr, "Runs an artifact produced by oxidate.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  ignite fib.oxbc\n")
		fmt.Fprintf(os.Stderr, "  ignite -quantum 1 -trace run.cbor counter.oxbc\n")
	}
	flag.Parse()

	if *verbose {
		commonlog.Configure(2, nil)
	} else {
		commonlog.Configure(0, nil)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if *quantum < 0 {
		fmt.Fprintf(os.Stderr, "Error: -quantum must not be negative\n")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	code := run(ctx, runOptions{
		Artifact: flag.Arg(0),
		Quantum:  *quantum,
		Trace:    *trace,
		Debug:    *debug,
		Verbose:  *verbose,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	})
	os.Exit(code)
}
