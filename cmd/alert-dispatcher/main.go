package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/models"
	"github.com/mmdatafocus/kitchen_backend/workflow"
)

func main() {
	_ = godotenv.Load()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := workflow.NewOutboxDispatcher(config.GetDB(), config.GetLogger())
	fmt.Printf("alert dispatcher %s started (topic %s)\n", dispatcher.DispatcherID, config.AlertTopicID())
	dispatcher.Run(ctx)
	fmt.Println("alert dispatcher stopped")
}
