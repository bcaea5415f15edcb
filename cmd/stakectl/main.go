package main

import (
	"os"

	"github.com/stakeops/stakectl/internal/app"
)

func main() {
	runner := app.NewRunner()
	os.Exit(runner.Run(os.Args[1:]))
}
