package main

import (
	"fmt"
	"os"

	"github.com/lazypower/hippocampus/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "hippocampus: %v\n", err)
		os.Exit(1)
	}
}
