package main

import (
	"os"

	"github.com/aeroswarm/aeroswarm/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
