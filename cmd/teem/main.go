// Package main provides the TEEM command line interface.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/teem-cpu/teem/asm"
	"github.com/teem-cpu/teem/config"
	"github.com/teem-cpu/teem/engine"
)

var (
	configPath = flag.String("config", "", "Path to YAML configuration file (default: built-in defaults)")
	batch      = flag.Bool("batch", false, "Run to completion without the interactive shell")
	inorder    = flag.Bool("inorder", false, "Use the in-order reference interpreter instead of the speculative core")
	verbose    = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: teem [options] <program.s>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	programPath := flag.Arg(0)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	source, err := os.ReadFile(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading program: %v\n", err)
		os.Exit(1)
	}
	prog, err := asm.Parse(string(source))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error assembling %s: %v\n", programPath, err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("Loaded: %s\n", programPath)
		fmt.Printf("Entry point: %#x\n", prog.Entry)
		fmt.Printf("Instructions: %d\n", len(prog.Code))
		fmt.Printf("Data bytes: %d\n", len(prog.Data))
	}

	if *inorder {
		os.Exit(int(runInOrder(prog, cfg)))
	}

	e := engine.New(prog, cfg)
	if *batch {
		os.Exit(int(runBatch(e)))
	}
	os.Exit(int(runShell(e)))
}

// runBatch runs the speculative engine to completion. An ebreak merely
// resumes in batch mode.
func runBatch(e *engine.Engine) int32 {
	for {
		e.Run()
		switch e.Status() {
		case engine.StatusPaused:
			e.Resume()
		case engine.StatusFaulted:
			fmt.Fprintf(os.Stderr, "Fault: %s\n", e.Fault().Reason)
			return 1
		default:
			if *verbose {
				fmt.Printf("\nCycles: %d\n", e.Cycles())
			}
			return e.ExitCode()
		}
	}
}

// runInOrder runs the reference interpreter to completion.
func runInOrder(prog *asm.Program, cfg *config.Config) int32 {
	i := engine.NewInOrder(prog, cfg)
	for {
		i.Run()
		if i.Status() == engine.StatusPaused {
			i.Resume()
			continue
		}
		if i.Status() == engine.StatusFaulted {
			fmt.Fprintf(os.Stderr, "Fault: %s\n", i.Fault().Reason)
			return 1
		}
		return i.ExitCode()
	}
}
