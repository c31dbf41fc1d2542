// Package main is the entry point for the housecost CLI.
package main

import (
	"os"

	"housecost/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
