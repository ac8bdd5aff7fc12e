package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"preciobot/internal/app"
	"preciobot/internal/config"
	"preciobot/internal/listener"
	"preciobot/internal/logging"
)

func main() {
	cfg, err := config.Load()
	must(err)
	log := logging.New(cfg.LogLevel, cfg.LogFormat, nil)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	must(err)
	defer a.Close()

	bot, err := listener.NewBot(cfg)
	must(err)

	must(listener.NewService(bot, a.Bot, log).Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
