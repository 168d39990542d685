package main

import (
	"os"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
