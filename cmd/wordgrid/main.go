// Package main provides the entry point for the wordgrid CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/wordgrid/cmd/wordgrid/cmd"
	"github.com/Aman-CERP/wordgrid/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errors.FormatForCLI(err))
		os.Exit(1)
	}
}
