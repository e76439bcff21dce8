package main

import (
	"os"

	"battlemap_server/internal/tools/battlemapcli"
)

func main() {
	if err := battlemapcli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
