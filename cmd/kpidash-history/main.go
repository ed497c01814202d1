package main

import (
	"fmt"
	"os"

	"kpidash/internal/cli"
	"kpidash/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), log.ComponentStorage)

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
