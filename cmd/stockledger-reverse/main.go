package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/mmdatafocus/kitchen_backend/workflow"
)

func main() {
	businessID := flag.String("business-id", "", "Business owning the movement (required)")
	movementID := flag.String("movement-id", "", "Ledger entry to reverse (required)")
	reason := flag.String("reason", "", "Reason recorded on the reversal (required)")
	flag.Parse()

	bid := strings.TrimSpace(*businessID)
	mid := strings.TrimSpace(*movementID)
	why := strings.TrimSpace(*reason)
	if bid == "" || mid == "" || why == "" {
		fmt.Fprintln(os.Stderr, "usage: stockledger-reverse -business-id <uuid> -movement-id <uuid> -reason <text>")
		os.Exit(1)
	}

	_ = godotenv.Load()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	ctx := context.Background()
	ctx = utils.SetBusinessIdInContext(ctx, bid)
	ctx = utils.SetUserNameInContext(ctx, "StockLedgerReverse")

	reversals, err := workflow.ReverseMovement(ctx, mid, why)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reverse failed: %v\n", err)
		os.Exit(1)
	}
	if len(reversals) == 0 {
		fmt.Println("movement already reversed, nothing to do")
		return
	}
	for _, rev := range reversals {
		fmt.Printf("reversed %s with %s (delta %s)\n", mid, rev.ID, rev.QtyDelta.String())
	}
}
