package main

import (
	"os"

	"github.com/seedlabs/relay-listener/cmd/listener/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
