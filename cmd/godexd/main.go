package main

import (
	"os"

	"github.com/helixdex/godexd/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
