package main

import (
	"os"

	"github.com/obsstack/aiops-rca/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
