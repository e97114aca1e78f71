package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/models"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/mmdatafocus/kitchen_backend/workflow"
	"github.com/shopspring/decimal"
)

// Full-stack regression over the stock ledger: the materialized snapshot must
// equal the ledger sum after every operation, batches must be all-or-nothing,
// and the order/purchase state machines must drive the ledger exactly once per
// transition.
func TestStockLedgerLifecycle(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{Name: "Mill Co"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}
	flour, err := models.CreateIngredient(ctx, &models.NewIngredient{
		Name:             "Flour",
		Unit:             "kg",
		UnitCost:         decimal.NewFromFloat(2.0),
		ReorderThreshold: decimal.NewFromInt(5),
		SupplierId:       supplier.ID,
	})
	if err != nil {
		t.Fatalf("CreateIngredient: %v", err)
	}

	// Receive a purchase of 10 kg: the only way stock enters the system.
	purchase, err := models.CreatePurchase(ctx, &models.NewPurchase{
		SupplierId:  supplier.ID,
		TotalAmount: decimal.NewFromFloat(20.00),
		Items: []models.NewPurchaseItem{
			{IngredientId: flour.ID, Qty: decimal.NewFromInt(10), UnitPrice: decimal.NewFromFloat(2.00), LineTotal: decimal.NewFromFloat(20.00)},
		},
	})
	if err != nil {
		t.Fatalf("CreatePurchase: %v", err)
	}
	received, err := workflow.ReceivePurchase(ctx, purchase.ID)
	if err != nil {
		t.Fatalf("ReceivePurchase: %v", err)
	}
	if received.CurrentStatus != models.PurchaseStatusReceived {
		t.Fatalf("purchase status: got %s", received.CurrentStatus)
	}
	if received.ReceiveBatchId == nil {
		t.Fatal("receive batch id not recorded")
	}
	assertSnapshotMatchesLedger(t, ctx, flour.ID, decimal.NewFromInt(10))

	// Receiving again must fail the transition check and leave stock untouched.
	if _, err := workflow.ReceivePurchase(ctx, purchase.ID); !errors.Is(err, utils.ErrorInvalidTransition) {
		t.Fatalf("double receive: got %v, want ErrorInvalidTransition", err)
	}
	assertSnapshotMatchesLedger(t, ctx, flour.ID, decimal.NewFromInt(10))

	// Manual waste entry debits stock.
	_, err = workflow.RecordMovement(ctx, &workflow.MovementInput{
		IngredientId: flour.ID,
		QtyDelta:     decimal.NewFromInt(-1),
		Kind:         models.MovementKindWaste,
		Note:         "spilled",
	})
	if err != nil {
		t.Fatalf("RecordMovement waste: %v", err)
	}
	assertSnapshotMatchesLedger(t, ctx, flour.ID, decimal.NewFromInt(9))

	// Wrong sign for a debit-only kind.
	_, err = workflow.RecordMovement(ctx, &workflow.MovementInput{
		IngredientId: flour.ID,
		QtyDelta:     decimal.NewFromInt(1),
		Kind:         models.MovementKindWaste,
	})
	if !errors.Is(err, utils.ErrorInvalidQuantity) {
		t.Fatalf("positive waste: got %v, want ErrorInvalidQuantity", err)
	}

	// Overdraw rejects the whole batch: the valid first entry must not land.
	_, err = workflow.RecordMovements(ctx, []*workflow.MovementInput{
		{IngredientId: flour.ID, QtyDelta: decimal.NewFromInt(-2), Kind: models.MovementKindUsage},
		{IngredientId: flour.ID, QtyDelta: decimal.NewFromInt(-20), Kind: models.MovementKindUsage},
	})
	if !errors.Is(err, utils.ErrorInsufficientStock) {
		t.Fatalf("overdraw batch: got %v, want ErrorInsufficientStock", err)
	}
	assertSnapshotMatchesLedger(t, ctx, flour.ID, decimal.NewFromInt(9))

	// Reverse the waste entry: compensating ADJUSTMENT restores the quantity.
	var waste models.StockMovement
	db := config.GetDB()
	if err := db.Where("ingredient_id = ? AND kind = ?", flour.ID, models.MovementKindWaste).
		First(&waste).Error; err != nil {
		t.Fatalf("fetch waste movement: %v", err)
	}
	reversals, err := workflow.ReverseMovement(ctx, waste.ID, "entered in error")
	if err != nil {
		t.Fatalf("ReverseMovement: %v", err)
	}
	if len(reversals) != 1 {
		t.Fatalf("reversals: got %d, want 1", len(reversals))
	}
	if reversals[0].Kind != models.MovementKindAdjustment || !reversals[0].IsReversal {
		t.Fatalf("unexpected reversal entry %+v", reversals[0])
	}
	if !strings.HasPrefix(reversals[0].Note, "REV: ") {
		t.Fatalf("reversal note: %q", reversals[0].Note)
	}
	assertSnapshotMatchesLedger(t, ctx, flour.ID, decimal.NewFromInt(10))

	// Reversing again is a no-op.
	again, err := workflow.ReverseMovement(ctx, waste.ID, "again")
	if err != nil {
		t.Fatalf("second ReverseMovement: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second reversal must be a no-op, got %d entries", len(again))
	}
	assertSnapshotMatchesLedger(t, ctx, flour.ID, decimal.NewFromInt(10))
}

// Order lifecycle: confirm freezes nothing new (snapshots were frozen at
// create), commits USAGE atomically, and cancel of an IN_PROGRESS order
// restores stock via reversal.
func TestOrderFulfillmentAndCancellation(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	flour := seedIngredientWithStock(t, ctx, "Flour", decimal.NewFromInt(10), decimal.NewFromFloat(2.0))

	recipe, err := models.CreateRecipe(ctx, &models.NewRecipe{
		Name: "Bread",
		Ingredients: []models.NewRecipeIngredient{
			{IngredientId: flour.ID, Qty: decimal.NewFromInt(2), Unit: "kg"},
		},
	})
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}

	order, err := workflow.CreateOrder(ctx, &models.NewOrder{
		Items: []models.NewOrderItem{{RecipeId: recipe.ID, Qty: decimal.NewFromInt(3)}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.CurrentStatus != models.OrderStatusPending {
		t.Fatalf("order status: got %s", order.CurrentStatus)
	}
	// 3 loaves * 2 kg * 2.0 = 12.0
	if !order.TotalCost.Equal(decimal.NewFromFloat(12.0)) {
		t.Fatalf("order total: got %s, want 12", order.TotalCost)
	}
	// Creation reserves nothing.
	assertSnapshotMatchesLedger(t, ctx, flour.ID, decimal.NewFromInt(10))

	confirmed, err := workflow.ConfirmOrderFulfillment(ctx, order.ID)
	if err != nil {
		t.Fatalf("ConfirmOrderFulfillment: %v", err)
	}
	if confirmed.CurrentStatus != models.OrderStatusInProgress {
		t.Fatalf("confirmed status: got %s", confirmed.CurrentStatus)
	}
	if confirmed.UsageBatchId == nil {
		t.Fatal("usage batch id not recorded")
	}
	assertSnapshotMatchesLedger(t, ctx, flour.ID, decimal.NewFromInt(4))

	// IN_PROGRESS orders must not be modified.
	_, err = workflow.ModifyOrderItems(ctx, order.ID, []models.NewOrderItem{
		{RecipeId: recipe.ID, Qty: decimal.NewFromInt(1)},
	})
	if !errors.Is(err, utils.ErrorInvalidTransition) {
		t.Fatalf("modify in progress: got %v, want ErrorInvalidTransition", err)
	}

	cancelled, err := workflow.CancelOrder(ctx, order.ID, "customer walked out")
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if cancelled.CurrentStatus != models.OrderStatusCancelled {
		t.Fatalf("cancelled status: got %s", cancelled.CurrentStatus)
	}
	assertSnapshotMatchesLedger(t, ctx, flour.ID, decimal.NewFromInt(10))

	// Terminal: no further transitions.
	if _, err := workflow.CompleteOrder(ctx, order.ID); !errors.Is(err, utils.ErrorInvalidTransition) {
		t.Fatalf("complete cancelled: got %v, want ErrorInvalidTransition", err)
	}
}

// Confirming an order whose frozen requirements exceed stock must fail with
// InsufficientStock and leave the order PENDING and the ledger untouched.
func TestOrderConfirmInsufficientStockStaysPending(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	flour := seedIngredientWithStock(t, ctx, "Flour", decimal.NewFromInt(4), decimal.NewFromFloat(2.0))

	recipe, err := models.CreateRecipe(ctx, &models.NewRecipe{
		Name: "Bread",
		Ingredients: []models.NewRecipeIngredient{
			{IngredientId: flour.ID, Qty: decimal.NewFromInt(2), Unit: "kg"},
		},
	})
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}

	// Estimate reports insufficiency without rejecting.
	estimate, err := workflow.EstimateOrder(ctx, []models.NewOrderItem{
		{RecipeId: recipe.ID, Qty: decimal.NewFromInt(3)},
	})
	if err != nil {
		t.Fatalf("EstimateOrder: %v", err)
	}
	if len(estimate.Availability) != 1 || estimate.Availability[0].Status != models.AvailabilityInsufficient {
		t.Fatalf("availability: %+v", estimate.Availability)
	}

	order, err := workflow.CreateOrder(ctx, &models.NewOrder{
		Items: []models.NewOrderItem{{RecipeId: recipe.ID, Qty: decimal.NewFromInt(3)}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	_, err = workflow.ConfirmOrderFulfillment(ctx, order.ID)
	if !errors.Is(err, utils.ErrorInsufficientStock) {
		t.Fatalf("confirm: got %v, want ErrorInsufficientStock", err)
	}

	reloaded, err := models.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if reloaded.CurrentStatus != models.OrderStatusPending {
		t.Fatalf("order must stay PENDING, got %s", reloaded.CurrentStatus)
	}
	if reloaded.UsageBatchId != nil {
		t.Fatal("usage batch id must stay empty after failed confirm")
	}
	assertSnapshotMatchesLedger(t, ctx, flour.ID, decimal.NewFromInt(4))
}

// Two orders racing over the last of the stock: exactly one confirm wins, the
// other fails with InsufficientStock, and the final quantity is zero.
func TestConcurrentConfirmsOverdrawRejected(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	flour := seedIngredientWithStock(t, ctx, "Flour", decimal.NewFromInt(6), decimal.NewFromFloat(2.0))

	recipe, err := models.CreateRecipe(ctx, &models.NewRecipe{
		Name: "Bread",
		Ingredients: []models.NewRecipeIngredient{
			{IngredientId: flour.ID, Qty: decimal.NewFromInt(2), Unit: "kg"},
		},
	})
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}

	makeOrder := func() int {
		order, err := workflow.CreateOrder(ctx, &models.NewOrder{
			Items: []models.NewOrderItem{{RecipeId: recipe.ID, Qty: decimal.NewFromInt(3)}},
		})
		if err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}
		return order.ID
	}
	orderA := makeOrder()
	orderB := makeOrder()

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, id := range []int{orderA, orderB} {
		wg.Add(1)
		go func(orderId int) {
			defer wg.Done()
			_, err := workflow.ConfirmOrderFulfillment(ctx, orderId)
			results <- err
		}(id)
	}
	wg.Wait()
	close(results)

	var succeeded, insufficient int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, utils.ErrorInsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected confirm error: %v", err)
		}
	}
	if succeeded != 1 || insufficient != 1 {
		t.Fatalf("got %d successes and %d insufficient, want 1 and 1", succeeded, insufficient)
	}
	assertSnapshotMatchesLedger(t, ctx, flour.ID, decimal.Zero)
}

// Dropping to or below the reorder threshold queues exactly one outbox alert.
func TestLowStockAlertQueuedOnThresholdCrossing(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	flour := seedIngredientWithStock(t, ctx, "Flour", decimal.NewFromInt(10), decimal.NewFromFloat(2.0))

	_, err := workflow.RecordMovement(ctx, &workflow.MovementInput{
		IngredientId: flour.ID,
		QtyDelta:     decimal.NewFromInt(-6),
		Kind:         models.MovementKindUsage,
	})
	if err != nil {
		t.Fatalf("RecordMovement: %v", err)
	}

	db := config.GetDB()
	var count int64
	err = db.Model(&models.AlertOutboxRecord{}).
		Where("ingredient_id = ? AND alert_type = ?", flour.ID, models.AlertTypeLowStock).
		Count(&count).Error
	if err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if count != 1 {
		t.Fatalf("outbox rows: got %d, want 1", count)
	}

	alerts, err := models.LowStockAlerts(ctx, nil)
	if err != nil {
		t.Fatalf("LowStockAlerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].IngredientId != flour.ID {
		t.Fatalf("alerts: %+v", alerts)
	}
}

// Replaying a committed entry under its preset id must return the existing
// entry and must not move the snapshot a second time, including when the
// replayed entry rides along in a batch with fresh ones.
func TestMovementReplayDoesNotDoubleApply(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	flour := seedIngredientWithStock(t, ctx, "Flour", decimal.NewFromInt(10), decimal.NewFromFloat(2.0))

	presetId := uuid.NewString()
	input := &workflow.MovementInput{
		MovementId:   presetId,
		IngredientId: flour.ID,
		QtyDelta:     decimal.NewFromInt(-2),
		Kind:         models.MovementKindUsage,
		Note:         "evening shift",
	}
	first, err := workflow.RecordMovement(ctx, input)
	if err != nil {
		t.Fatalf("RecordMovement: %v", err)
	}
	if first.ID != presetId {
		t.Fatalf("movement id: got %s, want %s", first.ID, presetId)
	}
	assertSnapshotMatchesLedger(t, ctx, flour.ID, decimal.NewFromInt(8))

	// Same input again: the committed entry comes back, the delta does not.
	replayed, err := workflow.RecordMovement(ctx, input)
	if err != nil {
		t.Fatalf("replayed RecordMovement: %v", err)
	}
	if replayed == nil || replayed.ID != presetId {
		t.Fatalf("replayed movement: got %+v, want id %s", replayed, presetId)
	}
	assertSnapshotMatchesLedger(t, ctx, flour.ID, decimal.NewFromInt(8))

	// Mixed batch: the replayed entry is skipped, only the fresh one applies.
	fresh, err := workflow.RecordMovements(ctx, []*workflow.MovementInput{
		input,
		{IngredientId: flour.ID, QtyDelta: decimal.NewFromInt(-1), Kind: models.MovementKindWaste, Note: "burnt"},
	})
	if err != nil {
		t.Fatalf("mixed batch: %v", err)
	}
	if len(fresh) != 1 || fresh[0].Kind != models.MovementKindWaste {
		t.Fatalf("mixed batch movements: %+v", fresh)
	}
	assertSnapshotMatchesLedger(t, ctx, flour.ID, decimal.NewFromInt(7))

	db := config.GetDB()
	var count int64
	if err := db.Model(&models.StockMovement{}).Where("id = ?", presetId).Count(&count).Error; err != nil {
		t.Fatalf("count preset rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("preset id rows: got %d, want 1", count)
	}
}

// Committed batches must invalidate the cached ingredient rows, so analytics
// reads going through the cache see the moved snapshot instead of a value up
// to the cache lifespan old.
func TestIngredientCacheRefreshedAfterPosting(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	flour := seedIngredientWithStock(t, ctx, "Flour", decimal.NewFromInt(10), decimal.NewFromFloat(2.0))

	// Warm both the list and instance caches.
	if _, err := models.GetIngredients(ctx); err != nil {
		t.Fatalf("GetIngredients: %v", err)
	}
	if _, err := models.GetCurrentQuantity(ctx, flour.ID); err != nil {
		t.Fatalf("GetCurrentQuantity: %v", err)
	}

	_, err := workflow.RecordMovement(ctx, &workflow.MovementInput{
		IngredientId: flour.ID,
		QtyDelta:     decimal.NewFromInt(-3),
		Kind:         models.MovementKindUsage,
	})
	if err != nil {
		t.Fatalf("RecordMovement: %v", err)
	}

	ingredients, err := models.GetIngredients(ctx)
	if err != nil {
		t.Fatalf("GetIngredients after posting: %v", err)
	}
	var cachedQty *decimal.Decimal
	for _, ing := range ingredients {
		if ing.ID == flour.ID {
			q := ing.CurrentQty
			cachedQty = &q
		}
	}
	if cachedQty == nil {
		t.Fatalf("ingredient %d missing from list", flour.ID)
	}
	if !cachedQty.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("cached list qty: got %s, want 7", cachedQty)
	}
	qty, err := models.GetCurrentQuantity(ctx, flour.ID)
	if err != nil {
		t.Fatalf("GetCurrentQuantity after posting: %v", err)
	}
	if !qty.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("cached instance qty: got %s, want 7", qty)
	}

	// The consistency check reads through the same cache and must see no drift.
	drifts, err := workflow.CheckSnapshotConsistency(ctx)
	if err != nil {
		t.Fatalf("CheckSnapshotConsistency: %v", err)
	}
	if len(drifts) != 0 {
		t.Fatalf("drifts after posting: %+v", drifts)
	}
}

func assertSnapshotMatchesLedger(t *testing.T, ctx context.Context, ingredientId int, want decimal.Decimal) {
	t.Helper()
	qty, err := models.GetCurrentQuantity(ctx, ingredientId)
	if err != nil {
		t.Fatalf("GetCurrentQuantity: %v", err)
	}
	if !qty.Equal(want) {
		t.Fatalf("snapshot: got %s, want %s", qty, want)
	}
	sums, err := models.ComputeLedgerQuantities(ctx, ingredientId)
	if err != nil {
		t.Fatalf("ComputeLedgerQuantities: %v", err)
	}
	ledger := decimal.Zero
	for _, s := range sums {
		if s.IngredientId == ingredientId {
			ledger = s.Qty
		}
	}
	if !ledger.Equal(want) {
		t.Fatalf("ledger sum: got %s, want %s", ledger, want)
	}
}

// seedIngredientWithStock creates a supplier + ingredient and credits initial
// stock through a received purchase, the same way stock enters in production.
func seedIngredientWithStock(t *testing.T, ctx context.Context, name string, qty decimal.Decimal, unitCost decimal.Decimal) *models.Ingredient {
	t.Helper()
	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{Name: name + " Supplier"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}
	ingredient, err := models.CreateIngredient(ctx, &models.NewIngredient{
		Name:             name,
		Unit:             "kg",
		UnitCost:         unitCost,
		ReorderThreshold: decimal.NewFromInt(5),
		SupplierId:       supplier.ID,
	})
	if err != nil {
		t.Fatalf("CreateIngredient: %v", err)
	}

	total := qty.Mul(unitCost)
	purchase, err := models.CreatePurchase(ctx, &models.NewPurchase{
		SupplierId:  supplier.ID,
		TotalAmount: total,
		Items: []models.NewPurchaseItem{
			{IngredientId: ingredient.ID, Qty: qty, UnitPrice: unitCost, LineTotal: total},
		},
	})
	if err != nil {
		t.Fatalf("CreatePurchase: %v", err)
	}
	if _, err := workflow.ReceivePurchase(ctx, purchase.ID); err != nil {
		t.Fatalf("ReceivePurchase: %v", err)
	}
	return ingredient
}

var (
	setupOnce      sync.Once
	testContainers []string
)

func TestMain(m *testing.M) {
	code := m.Run()
	for _, name := range testContainers {
		_ = dockerRmForce(name)
	}
	os.Exit(code)
}

// setupIntegrationEnv starts throwaway MySQL and Redis containers once per
// test binary and returns a context scoped to a fresh business id, so tests
// share infrastructure without sharing data. TestMain reaps the containers.
func setupIntegrationEnv(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	setupOnce.Do(func() {
		redisName, redisPort := startRedisContainer(t)
		mysqlName, mysqlPort := startMySQLContainer(t)
		testContainers = append(testContainers, redisName, mysqlName)

		os.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
		os.Setenv("DB_USER", "root")
		os.Setenv("DB_PASSWORD", "testpw")
		os.Setenv("DB_HOST", "127.0.0.1")
		os.Setenv("DB_PORT", mysqlPort)
		os.Setenv("DB_NAME", "kitchen_test")

		config.ConnectDatabaseWithRetry()
		config.ConnectRedisWithRetry()
		models.MigrateTable()
	})

	ctx := context.Background()
	ctx = utils.SetBusinessIdInContext(ctx, uuid.NewString())
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	return ctx
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("kitchen-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("kitchen-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=kitchen_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
