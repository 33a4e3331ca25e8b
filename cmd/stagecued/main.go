// Command stagecued runs the playback daemon in the foreground. It owns the
// second screen, the decks and every player process; the stagecue CLI talks
// to it over the Unix socket.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"stagecue/internal/config"
	"stagecue/internal/daemon"
	"stagecue/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewForDaemon(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	d, err := daemon.New(cfg, logger)
	if err != nil {
		log.Fatalf("create daemon: %v", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		log.Fatalf("start daemon: %v", err)
	}

	select {
	case <-ctx.Done():
		logger.Info("stagecued shutting down on signal")
	case <-d.ShutdownRequested():
		logger.Info("stagecued shutting down on client request")
	}
	d.Stop()
}
