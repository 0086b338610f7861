package main

import (
	"os"

	"github.com/redxsmoke/riddleofthedaydev/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
