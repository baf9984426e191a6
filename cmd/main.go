package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gamescout/gamescout-backend/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		application.Log.Info("Shutting down...")
		application.Close()
		os.Exit(0)
	}()

	if err := application.Run(); err != nil {
		application.Log.Error("HTTP server exited", "error", err)
		os.Exit(1)
	}
}
