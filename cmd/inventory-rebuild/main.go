package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/models"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/mmdatafocus/kitchen_backend/workflow"
)

func main() {
	businessID := flag.String("business-id", "", "Business to rebuild (required)")
	checkOnly := flag.Bool("check-only", false, "Report drifted snapshots without rewriting them")
	flag.Parse()

	bid := strings.TrimSpace(*businessID)
	if bid == "" {
		fmt.Fprintln(os.Stderr, "usage: inventory-rebuild -business-id <uuid> [-check-only]")
		os.Exit(1)
	}

	_ = godotenv.Load()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx := context.Background()
	ctx = utils.SetBusinessIdInContext(ctx, bid)
	ctx = utils.SetUserNameInContext(ctx, "InventoryRebuild")

	drifts, err := workflow.CheckSnapshotConsistency(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "consistency check failed: %v\n", err)
		os.Exit(1)
	}
	if len(drifts) == 0 {
		fmt.Println("all snapshots match the ledger")
		return
	}
	for _, d := range drifts {
		fmt.Printf("ingredient %d: snapshot %s, ledger %s\n",
			d.IngredientId, d.SnapshotQty.String(), d.LedgerQty.String())
	}
	if *checkOnly {
		os.Exit(2)
	}

	rebuilt, err := workflow.RebuildSnapshots(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("rebuilt %d snapshot(s)\n", rebuilt)
}
