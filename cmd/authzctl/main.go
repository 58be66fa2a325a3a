// Package main is the entry point for the authzctl binary.
package main

import (
	"os"

	"authzkit/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
