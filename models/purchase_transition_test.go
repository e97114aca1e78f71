package models

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
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/shopspring/decimal"
)

// A cancel racing a receive must not report success after losing: the guarded
// status write affects zero rows when another writer moved the purchase first,
// and that comes back as an invalid transition.
func TestCancelLosesRaceWithReceive(t *testing.T) {
	ctx := setupModelsDB(t)

	purchase := seedPendingPurchase(t, ctx)

	stale, err := GetPurchase(ctx, purchase.ID)
	if err != nil {
		t.Fatalf("GetPurchase: %v", err)
	}
	if stale.CurrentStatus != PurchaseStatusPending {
		t.Fatalf("status: got %s, want Pending", stale.CurrentStatus)
	}

	// Another writer commits the receive between our read and our write.
	db := config.GetDB()
	err = db.Model(&Purchase{}).
		Where("id = ?", purchase.ID).
		Update("current_status", PurchaseStatusReceived).Error
	if err != nil {
		t.Fatalf("flip status: %v", err)
	}

	err = applyPurchaseTransition(ctx, stale, PurchaseStatusCancelled)
	if !errors.Is(err, utils.ErrorInvalidTransition) {
		t.Fatalf("stale cancel: got %v, want ErrorInvalidTransition", err)
	}

	reloaded, err := GetPurchase(ctx, purchase.ID)
	if err != nil {
		t.Fatalf("GetPurchase after race: %v", err)
	}
	if reloaded.CurrentStatus != PurchaseStatusReceived {
		t.Fatalf("status after losing cancel: got %s, want Received", reloaded.CurrentStatus)
	}
}

func TestPurchaseTransitionGuardedWrite(t *testing.T) {
	ctx := setupModelsDB(t)

	purchase := seedPendingPurchase(t, ctx)

	confirmed, err := ConfirmPurchase(ctx, purchase.ID)
	if err != nil {
		t.Fatalf("ConfirmPurchase: %v", err)
	}
	if confirmed.CurrentStatus != PurchaseStatusConfirmed {
		t.Fatalf("status: got %s, want Confirmed", confirmed.CurrentStatus)
	}

	cancelled, err := CancelPurchase(ctx, purchase.ID)
	if err != nil {
		t.Fatalf("CancelPurchase: %v", err)
	}
	if cancelled.CurrentStatus != PurchaseStatusCancelled {
		t.Fatalf("status: got %s, want Cancelled", cancelled.CurrentStatus)
	}

	// Cancelled is terminal.
	if _, err := ConfirmPurchase(ctx, purchase.ID); !errors.Is(err, utils.ErrorInvalidTransition) {
		t.Fatalf("confirm cancelled: got %v, want ErrorInvalidTransition", err)
	}
}

func seedPendingPurchase(t *testing.T, ctx context.Context) *Purchase {
	t.Helper()
	supplier, err := CreateSupplier(ctx, &NewSupplier{Name: "Mill Co"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}
	flour, err := CreateIngredient(ctx, &NewIngredient{
		Name:             "Flour",
		Unit:             "kg",
		UnitCost:         decimal.NewFromFloat(2.0),
		ReorderThreshold: decimal.NewFromInt(5),
		SupplierId:       supplier.ID,
	})
	if err != nil {
		t.Fatalf("CreateIngredient: %v", err)
	}
	purchase, err := CreatePurchase(ctx, &NewPurchase{
		SupplierId:  supplier.ID,
		TotalAmount: decimal.NewFromFloat(20.00),
		Items: []NewPurchaseItem{
			{IngredientId: flour.ID, Qty: decimal.NewFromInt(10), UnitPrice: decimal.NewFromFloat(2.00), LineTotal: decimal.NewFromFloat(20.00)},
		},
	})
	if err != nil {
		t.Fatalf("CreatePurchase: %v", err)
	}
	return purchase
}

var (
	modelsSetupOnce      sync.Once
	modelsTestContainers []string
)

func TestMain(m *testing.M) {
	code := m.Run()
	for _, name := range modelsTestContainers {
		_ = modelsDockerRmForce(name)
	}
	os.Exit(code)
}

// setupModelsDB starts a throwaway MySQL container once per test binary and
// returns a context scoped to a fresh business id. Redis is left unconnected;
// the cache helpers no-op without it.
func setupModelsDB(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	modelsSetupOnce.Do(func() {
		name, port := startModelsMySQLContainer(t)
		modelsTestContainers = append(modelsTestContainers, name)

		os.Setenv("DB_USER", "root")
		os.Setenv("DB_PASSWORD", "testpw")
		os.Setenv("DB_HOST", "127.0.0.1")
		os.Setenv("DB_PORT", port)
		os.Setenv("DB_NAME", "kitchen_models_test")

		config.ConnectDatabaseWithRetry()
		MigrateTable()
	})

	ctx := context.Background()
	ctx = utils.SetBusinessIdInContext(ctx, uuid.NewString())
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	return ctx
}

func startModelsMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("kitchen-models-test-mysql-%d", time.Now().UnixNano())
	out, err := modelsDockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=kitchen_models_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := modelsDockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := modelsDockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func modelsDockerHostPort(container, portProto string) (string, error) {
	out, err := modelsDockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func modelsDockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := modelsDockerRun("rm", "-f", container)
	return err
}

func modelsDockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
