package main

import (
	"context"
	"os"
	"os/signal"

	"presence-bot/internal/cli"

	"github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.New().ExecuteContext(ctx); err != nil {
		logrus.Fatalf("error during command execution: %v", err)
	}
}
