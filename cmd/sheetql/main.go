// Package main is the entry point for the sheetql CLI binary.
package main

import (
	"os"

	"sheetql/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
