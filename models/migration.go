package models

import "github.com/mmdatafocus/kitchen_backend/config"

// MigrateTable auto-migrates every engine table. Call after connecting.
func MigrateTable() {
	db := config.GetDB()
	db.AutoMigrate(
		&Supplier{},
		&Ingredient{},
		&Recipe{},
		&RecipeIngredient{},
		&StockMovement{},
		&Order{},
		&OrderItem{},
		&OrderItemRequirement{},
		&Purchase{},
		&PurchaseItem{},
		&AlertOutboxRecord{},
	)
}
