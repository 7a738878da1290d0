// Package main is the entry point for the policyscan CLI.
package main

import (
	"os"

	"github.com/policyscan/policyscan/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
