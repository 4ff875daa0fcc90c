package main

import (
	"fmt"
	"os"

	"github.com/harliandi/heicconv/internal/converter"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := converter.Startup(); err != nil {
		fmt.Fprintf(os.Stderr, "starting %s backend: %v\n", converter.Backend(), err)
		return 1
	}
	defer converter.Shutdown()

	cmd := newRootCmd(converter.New(), os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}
