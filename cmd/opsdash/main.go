// Package main is the entry point for the opsdash CLI.
package main

import (
	"os"

	"github.com/opsdash/opsdash/cmd/opsdash/app"
	"github.com/opsdash/opsdash/pkg/logger"
)

func main() {
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
