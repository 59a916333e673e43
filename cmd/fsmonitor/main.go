// Package main provides the entry point for the fsmonitor CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/fsmonitor/cmd/fsmonitor/cmd"
	"github.com/Aman-CERP/fsmonitor/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if _, ok := errors.As(err); ok {
			fmt.Fprint(os.Stderr, errors.FormatForCLI(err))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
