package main

import (
	"os"

	"vision-assistant-be/internal/config"
	"vision-assistant-be/internal/model"
	"vision-assistant-be/pkg/database"

	"github.com/fatih/color"
)

func main() {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		color.Red("Error: DB_CONNECTION_STRING is not set")
		os.Exit(1)
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, database.DefaultPoolConfig(), false)
	if err != nil {
		color.Red("Error: Failed to connect to database: %v", err)
		os.Exit(1)
	}

	color.Cyan("Starting GORM migration...")

	color.Yellow("Step 1: Extensions")
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		color.Red("Warn: Failed to create pgcrypto extension: %v. Continuing...", err)
	}

	models := model.All()
	color.Yellow("Step 2: AutoMigrate for %d tables", len(models))
	if err := db.AutoMigrate(models...); err != nil {
		color.Red("Error: AutoMigrate failed: %v", err)
		os.Exit(1)
	}

	color.Yellow("Step 3: Indexes")
	postMigrationSQL := []string{
		// Analysis lookups filter on metadata keys.
		`CREATE INDEX IF NOT EXISTS idx_messages_metadata ON messages USING GIN (metadata);`,
		`CREATE INDEX IF NOT EXISTS idx_thread_detections_thread_recorded ON thread_detections (thread_id, recorded_at);`,
	}
	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			color.Red("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}

	color.Green("Success: Database migration completed.")
}
