package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/fieldsync/internal/client/cli"
	"github.com/dmitrijs2005/fieldsync/internal/client/config"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	// "notify" pokes an already running client instead of starting one.
	if len(os.Args) > 1 && os.Args[1] == "notify" {
		if err := cli.Notify(cfg); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	app, err := cli.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)

}
