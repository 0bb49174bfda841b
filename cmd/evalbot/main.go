package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"evalbot/internal/logger"
)

func main() {
	// Ensure all log files are closed on exit
	defer logger.CloseLogFile()

	// Create a cancellable context to manage shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Infof("Shutdown signal received, exiting...")
		cancel()
	}()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		logger.Errorf("%v", err)
		logger.CloseLogFile()
		os.Exit(1)
	}
}
