package main

import (
	"os"

	"github.com/claimlens/claimlens/internal/cli"
	"github.com/claimlens/claimlens/internal/redact"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := cli.NewRootCmd(version).Execute(); err != nil {
		redact.Logf("claimlens: %v", err)
		os.Exit(1)
	}
}
