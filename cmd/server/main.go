// Package main is the entry point for the handsplit API server
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/james-see/handsplit/internal/config"
	"github.com/james-see/handsplit/internal/logging"
	"github.com/james-see/handsplit/pkg/api"
)

func main() {
	defaults := config.Default()
	port := flag.Int("port", defaults.Server.Port, "Server port")
	splitPoint := flag.Int("split-point", defaults.Split.SplitPoint, "Default split point pitch")
	logLevel := flag.String("log-level", defaults.Logging.Level, "Log level (debug, info, warn, error)")
	flag.Parse()

	if !logging.ValidLevel(*logLevel) {
		fmt.Fprintf(os.Stderr, "invalid log level %q\n", *logLevel)
		os.Exit(2)
	}
	logger, err := logging.NewLogger("", *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	fmt.Printf("Starting handsplit API server on port %d...\n", *port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", *port)

	if err := api.StartServer(*port, api.Options{SplitPoint: *splitPoint, Logger: logger}); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
