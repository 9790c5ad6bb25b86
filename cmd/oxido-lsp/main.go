// oxido-lsp serves the oxido language over LSP on stdio.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/oxido/server"
)

const version = "0.1.0"

func main() {
	verbose := flag.Int("v", 0, "Log verbosity (logs go to stderr)")
	logFile := flag.String("log", "", "Write logs to this file instead of stderr")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	if *logFile != "" {
		commonlog.Configure(*verbose, logFile)
	} else {
		commonlog.Configure(*verbose, nil)
	}

	if err := server.NewLSP(version).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
