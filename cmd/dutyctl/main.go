package main

import (
	"os"

	"github.com/dutylens/dutylens/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
