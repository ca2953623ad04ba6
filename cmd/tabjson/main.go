// Package main is the entry point for the tabjson CLI binary.
package main

import (
	"os"

	"github.com/JonMunkholm/tabjson/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
