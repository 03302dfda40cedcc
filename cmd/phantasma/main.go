package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mfalcao/phantasma/internal/app"
	"github.com/mfalcao/phantasma/internal/config"
	"github.com/mfalcao/phantasma/internal/log"
	"github.com/mfalcao/phantasma/pkg/api"
)

func main() {
	configPath := flag.String("config", "phantasma.yaml", "Path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		stdlog.Fatalf("Failed to load configuration: %v", err)
	}
	log.Init(cfg.LogLevel)

	fmt.Println("👻 Phantasma")
	fmt.Printf("   Config: %s\n", *configPath)
	fmt.Printf("   API:    %s\n", cfg.ListenAddr)
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n👋 Shutting down...")
		cancel()
	}()

	assistant, err := app.New(cfg, app.Deps{})
	if err != nil {
		stdlog.Fatalf("Failed to assemble the assistant: %v", err)
	}
	defer assistant.Close()

	server := api.NewServer(api.Config{ListenAddr: cfg.ListenAddr},
		assistant, assistant.Registry(), assistant.Events(), assistant.Status)
	go func() {
		if err := server.Start(); err != nil {
			stdlog.Fatalf("API server failed: %v", err)
		}
	}()
	defer server.Shutdown()

	fmt.Println("🎤 Listening for the wake word")

	if err := assistant.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		stdlog.Printf("Assistant stopped: %v", err)
	}

	fmt.Println("👋 Goodbye!")
}
