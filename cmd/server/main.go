package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/echofyteam/echofy-auth/internal/server"
	"github.com/echofyteam/echofy-auth/internal/server/config"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}

}
