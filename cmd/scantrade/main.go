package main

import (
	"os"

	"github.com/rustyeddy/scantrade/cmd/scantrade/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
