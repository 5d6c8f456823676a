// Command browserenv runs and inspects supervised browser instances.
package main

import (
	"context"
	"os"

	"github.com/giantswarm/browserenv/internal/cmd"
)

func main() {
	if err := cmd.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
