// Package main is the entry point for the wienersep CLI, which runs the
// oracle multichannel Wiener filter over every track of a dataset.
//
// Usage:
//
//	wienersep --root /data/musdb [flags]
package main

import (
	"fmt"
	"os"

	"github.com/soundprobe/wienersep/cmd/wienersep/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
