// Package main is the DevFlow CLI entry point.
package main

import (
	"os"

	"github.com/hyperjump/devflow/internal/cli"
)

var version = "dev"

func main() {
	cli.SetVersion(version)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
