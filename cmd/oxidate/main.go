// oxidate compiles an oxido source file into a .oxbc artifact.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	output := flag.String("o", "", "Output artifact path (default: source name with .oxbc)")
	asm := flag.Bool("S", false, "Print the disassembly instead of writing the artifact")
	noCache := flag.Bool("no-cache", false, "Ignore the [build] cache of oxido.toml")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: oxidate [options] [file.ox]\n\n")
		fmt.Fprintf(os.Stderr, "Compiles an oxido source file. Without a file, the entry of the\n")
		fmt.Fprintf(os.Stderr, "nearest oxido.toml is compiled.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  oxidate fib.ox            # writes fib.oxbc\n")
		fmt.Fprintf(os.Stderr, "  oxidate -o out.oxbc fib.ox\n")
		fmt.Fprintf(os.Stderr, "  oxidate -S fib.ox         # print bytecode listing\n")
	}
	flag.Parse()

	if *verbose {
		commonlog.Configure(2, nil)
	} else {
		commonlog.Configure(0, nil)
	}

	if flag.NArg() > 1 {
		flag.Usage()
		os.Exit(2)
	}

	opts := buildOptions{
		Source:      flag.Arg(0),
		Output:      *output,
		Disassemble: *asm,
		NoCache:     *noCache,
	}
	res, err := build(opts, os.Stdout)
	if err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
	if *verbose && res.Output != "" {
		how := "compiled"
		if res.Cached {
			how = "reused cached build of"
		}
		fmt.Printf("%s %s to %s\n", how, res.Source, res.Output)
	}
}

// reportError prints err, in red when stderr is a terminal.
func reportError(w io.Writer, err error) {
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		fmt.Fprintf(w, "\x1b[1;31mError:\x1b[0m %v\n", err)
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
