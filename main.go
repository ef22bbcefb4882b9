package main

import (
	"os"

	"github.com/AlfredBerg/rootdata-sync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
