// Package main is the entry point for the snapscroll CLI.
package main

import (
	"os"

	"github.com/snapscroll/snapscroll/cmd/snapscroll/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
