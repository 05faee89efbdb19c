package main

import (
	"os"

	"auric/cmd/auric/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
