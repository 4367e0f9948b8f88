package main

import (
	"os"

	"github.com/drujensen/aibrowser/internal/cli"
)

var (
	version = "unknown" // This should be set during build with -ldflags="-X main.version=1.0.0"
)

func main() {
	os.Exit(cli.Execute(version))
}
