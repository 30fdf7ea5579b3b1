// Package main provides the entry point for TEEM.
// TEEM is an educational emulator of a speculative out-of-order RISC-V core,
// built to make transient-execution attacks observable.
//
// For the full CLI, use: go run ./cmd/teem
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("TEEM - Transient Execution EMulator")
	fmt.Println("Speculative out-of-order RV32IM core with an observable data cache")
	fmt.Println("")
	fmt.Println("Usage: teem [options] <program.s>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config    Path to YAML configuration file")
	fmt.Println("  -batch     Run without the interactive shell")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/teem' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/teem' instead.")
	}
}
