// Package main is the entry point for the shade CLI.
package main

import (
	"os"

	"github.com/shadehq/shade/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
