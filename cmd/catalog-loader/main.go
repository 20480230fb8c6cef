// Package main is the entry point for the catalog-loader CLI.
package main

import (
	"os"

	"github.com/Sternrassler/catalog-loader/cmd/catalog-loader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
