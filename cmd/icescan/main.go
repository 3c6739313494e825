// Package main is the entry point for the icescan binary.
package main

import (
	"os"

	cli "icescan/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
