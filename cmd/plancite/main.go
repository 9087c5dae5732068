// Command plancite indexes construction PDFs and answers questions with
// page and bounding-box citations.
package main

import (
	"context"
	"os"

	"github.com/custodia-labs/plancite/internal/adapters/driving/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
