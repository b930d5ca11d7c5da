// Package main runs one league round from a round input file.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	roundcmd "github.com/openleague/courtside/internal/cmd/round"
	"github.com/openleague/courtside/internal/platform/config"
	"github.com/openleague/courtside/internal/platform/otel"
)

func main() {
	cfg, err := roundcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	log.SetPrefix("[ROUND] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := otel.Setup(ctx, "courtside-round")
	if err != nil {
		log.Fatalf("setup telemetry: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("shutdown telemetry: %v", err)
		}
	}()

	// Proposals without pre-validated specifications are skipped when no
	// interpretation service is wired; passing them requires specs_json in
	// the round file.
	if err := roundcmd.Run(ctx, cfg, nil); err != nil {
		config.Exitf("Error: %v", err)
	}
}
