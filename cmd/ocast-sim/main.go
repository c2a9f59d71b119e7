package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/xpanvictor/goocast/internal/config"
	"github.com/xpanvictor/goocast/pkg/Logger"
	"github.com/xpanvictor/goocast/pkg/emulator"
)

// Runs a software OCast receiver: SSDP responder, application control
// endpoints and the websocket command channel.
func main() {
	// fetch cfg
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	// load global logger
	logger := Logger.New(cfg.Debug)
	logger.Info("Logger initialized")

	emu := emulator.New(emulator.Config{
		FriendlyName: cfg.Sim.FriendlyName,
		ModelName:    cfg.Sim.ModelName,
		UDN:          cfg.Sim.UDN,
		Apps:         cfg.Sim.Apps,
	}, logger)
	srv := emulator.NewServer(emu, logger)

	// serve with graceful exit
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	if err := srv.ListenAndServe(ctx, cfg.Sim.Addr); err != nil {
		logger.Fatalf("Simulator exiting: %v", err)
	}
	logger.Info("Shutdown system")
}
