// Package main provides the CLI for the LeapGrid query compiler.
package main

import (
	"os"

	"github.com/leapstack-labs/leapgrid/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
